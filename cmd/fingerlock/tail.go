package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/npratt/fingerlock/internal/events"
)

// tailLast prints the last n lines of the event log.
func tailLast(w io.Writer, path string, n int) error {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			_, _ = fmt.Fprintln(w, "No events yet (log file does not exist)")
			return nil
		}
		return fmt.Errorf("open log file: %w", err)
	}
	defer func() { _ = file.Close() }()

	// Keep only the last n lines in memory.
	ring := make([]string, 0, n)
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		if n <= 0 {
			continue
		}
		if len(ring) == n {
			ring = ring[1:]
		}
		ring = append(ring, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read log file: %w", err)
	}

	if len(ring) == 0 {
		_, _ = fmt.Fprintln(w, "No events yet")
		return nil
	}
	for _, line := range ring {
		printEventLine(w, line)
	}
	return nil
}

// waitForFile waits for a file to be created and returns the opened file.
func waitForFile(ctx context.Context, path string) (*os.File, error) {
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(500 * time.Millisecond):
			file, err := os.Open(path)
			if err == nil {
				return file, nil
			}
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("open file: %w", err)
			}
		}
	}
}

// tailFollow follows the event log and prints new lines as they appear.
func tailFollow(ctx context.Context, w io.Writer, path string) error {
	file, err := os.Open(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("open log file: %w", err)
		}
		_, _ = fmt.Fprintln(w, "Waiting for log file to be created...")
		file, err = waitForFile(ctx, path)
		if err != nil {
			return err
		}
	}
	defer func() { _ = file.Close() }()

	if _, err := file.Seek(0, io.SeekEnd); err != nil {
		return fmt.Errorf("seek to end: %w", err)
	}

	_, _ = fmt.Fprintln(w, "Following events (Ctrl+C to stop)...")
	reader := bufio.NewReader(file)
	var partial string
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		chunk, err := reader.ReadString('\n')
		partial += chunk
		if err == io.EOF {
			time.Sleep(100 * time.Millisecond)
			continue
		}
		if err != nil {
			return fmt.Errorf("read log: %w", err)
		}
		printEventLine(w, strings.TrimSuffix(partial, "\n"))
		partial = ""
	}
}

// printEventLine prints one JSONL record through the shared event
// formatter, or the raw line if it does not parse.
func printEventLine(w io.Writer, line string) {
	if strings.TrimSpace(line) == "" {
		return
	}
	event, err := events.ParseEvent([]byte(line))
	if err != nil || event == nil {
		_, _ = fmt.Fprintln(w, line)
		return
	}
	_, _ = fmt.Fprintln(w, events.FormatWithTimestamp(event))
}
