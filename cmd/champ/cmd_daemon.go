package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/felixgeelhaar/champ/internal/config"
)

var httpClient = &http.Client{Timeout: 5 * time.Second}

// cmdStart starts the daemon in the background
func cmdStart() error {
	if isRunning() {
		fmt.Println("✓ Daemon is already running")
		return nil
	}

	champDir, err := config.EnsureChampDir()
	if err != nil {
		return fmt.Errorf("setup champ directory: %w", err)
	}

	champdPath, err := findDaemonBinary()
	if err != nil {
		return fmt.Errorf("find daemon binary: %w", err)
	}

	cmd := exec.Command(champdPath)
	cmd.Dir = champDir
	detachDaemon(cmd)

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start daemon: %w", err)
	}

	fmt.Print("Starting daemon...")
	for range 30 {
		time.Sleep(100 * time.Millisecond)
		if isRunning() {
			fmt.Println(" ✓")
			fmt.Printf("Daemon running at %s\n", daemonAddr)
			return nil
		}
		fmt.Print(".")
	}

	fmt.Println(" ✗")
	return fmt.Errorf("daemon failed to start (check logs with 'champ logs')")
}

// cmdStop stops the daemon
func cmdStop() error {
	if !isRunning() {
		fmt.Println("Daemon is not running")
		return nil
	}

	champDir, err := config.ChampDir()
	if err != nil {
		return err
	}

	data, err := os.ReadFile(filepath.Join(champDir, pidFile))
	if err != nil {
		return fmt.Errorf("read PID file: %w", err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return fmt.Errorf("parse PID: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("find process: %w", err)
	}

	fmt.Print("Stopping daemon...")
	if err := process.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("send signal: %w", err)
	}

	for range 50 {
		time.Sleep(100 * time.Millisecond)
		if !isRunning() {
			fmt.Println(" ✓")
			return nil
		}
		fmt.Print(".")
	}

	fmt.Println(" ✗")
	return fmt.Errorf("daemon did not stop gracefully")
}

// cmdStatus shows daemon status
func cmdStatus() error {
	if !isRunning() {
		fmt.Println("Status: stopped")
		return nil
	}

	var status struct {
		Status       string   `json:"status"`
		Version      string   `json:"version"`
		Uptime       string   `json:"uptime"`
		UserID       string   `json:"user_id"`
		Storage      string   `json:"storage"`
		LLMProviders []string `json:"llm_providers"`
		Runner       string   `json:"runner"`
		Lessons      int      `json:"lessons"`
		Modules      int      `json:"modules"`
		Sync         *struct {
			Delivered int64 `json:"delivered"`
			Dropped   int64 `json:"dropped"`
			Failed    int64 `json:"failed"`
			Pending   int   `json:"pending"`
		} `json:"sync"`
	}
	if err := getJSON("/v1/status", &status); err != nil {
		return fmt.Errorf("get status: %w", err)
	}

	fmt.Printf("Status:    %s\n", status.Status)
	fmt.Printf("Version:   %s\n", status.Version)
	fmt.Printf("Uptime:    %s\n", status.Uptime)
	fmt.Printf("User:      %s\n", status.UserID)
	fmt.Printf("Storage:   %s\n", status.Storage)
	fmt.Printf("Runner:    %s\n", status.Runner)
	fmt.Printf("Providers: %s\n", strings.Join(status.LLMProviders, ", "))
	fmt.Printf("Content:   %d lessons, %d sprint modules\n", status.Lessons, status.Modules)
	if status.Sync != nil {
		fmt.Printf("Sync:      %d delivered, %d failed, %d dropped, %d pending\n",
			status.Sync.Delivered, status.Sync.Failed, status.Sync.Dropped, status.Sync.Pending)
	} else {
		fmt.Println("Sync:      off")
	}
	fmt.Printf("Address:   %s\n", daemonAddr)
	return nil
}

// cmdLogs prints the tail of the daemon log
func cmdLogs() error {
	champDir, err := config.ChampDir()
	if err != nil {
		return err
	}

	logPath := filepath.Join(champDir, "logs", "champd.log")
	file, err := os.Open(logPath)
	if os.IsNotExist(err) {
		fmt.Println("No log file found. Start the daemon first.")
		return nil
	}
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	// last ~4KB
	info, err := file.Stat()
	if err != nil {
		return err
	}
	offset := max(info.Size()-4096, 0)
	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return err
	}

	reader := bufio.NewReader(file)
	if offset > 0 {
		_, _ = reader.ReadString('\n')
	}
	scanner := bufio.NewScanner(reader)
	for scanner.Scan() {
		fmt.Println(scanner.Text())
	}
	return scanner.Err()
}

// isRunning checks if the daemon is running by calling the health endpoint
func isRunning() bool {
	resp, err := httpClient.Get(daemonAddr + "/v1/health")
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// getJSON fetches a daemon endpoint into v
func getJSON(path string, v any) error {
	resp, err := httpClient.Get(daemonAddr + path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decodeResponse(resp, v)
}

// postJSON sends body to a daemon endpoint and decodes the reply into v
func postJSON(path string, body, v any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	resp, err := httpClient.Post(daemonAddr+path, "application/json", strings.NewReader(string(data)))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decodeResponse(resp, v)
}

func decodeResponse(resp *http.Response, v any) error {
	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error   string `json:"error"`
			Details string `json:"details"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err != nil || apiErr.Error == "" {
			return fmt.Errorf("daemon returned %s", resp.Status)
		}
		if apiErr.Details != "" {
			return fmt.Errorf("%s: %s", apiErr.Error, apiErr.Details)
		}
		return fmt.Errorf("%s", apiErr.Error)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}

// findDaemonBinary locates the champd binary
func findDaemonBinary() (string, error) {
	if path, err := exec.LookPath("champd"); err == nil {
		return path, nil
	}

	if self, err := os.Executable(); err == nil {
		path := filepath.Join(filepath.Dir(self), "champd")
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	for _, path := range []string{"/usr/local/bin/champd", "./champd", "./cmd/champd/champd"} {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("champd binary not found (build with 'go build ./cmd/champd')")
}
