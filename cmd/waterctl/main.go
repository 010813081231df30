// waterctl is an operator CLI for the plant waterer API. It covers the
// commands needed day to day without reaching for curl.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

func main() {
	addr := flag.String("addr", "http://localhost:8130", "Base URL of the plant waterer API")
	cmd := flag.String("cmd", "status", "Command: status, pump-on, pump-off, run, pulse, reload-config, summary, moisture, waterings")
	seconds := flag.Float64("seconds", 0, "Duration in seconds for the run command")
	date := flag.String("date", "", "Day for the summary command (YYYY-MM-DD, default today)")
	flag.Parse()

	client := &http.Client{Timeout: 10 * time.Second}

	var err error
	switch *cmd {
	case "status":
		err = get(client, *addr+"/api/status")
	case "pump-on":
		err = post(client, *addr+"/api/pump/on", nil)
	case "pump-off":
		err = post(client, *addr+"/api/pump/off", nil)
	case "run":
		if *seconds <= 0 {
			fmt.Fprintln(os.Stderr, "run requires -seconds > 0")
			os.Exit(1)
		}
		err = post(client, *addr+"/api/pump/run", map[string]float64{"seconds": *seconds})
	case "pulse":
		err = post(client, *addr+"/api/pump/pulse", nil)
	case "reload-config":
		err = post(client, *addr+"/api/config/reload", nil)
	case "summary":
		url := *addr + "/api/summary"
		if *date != "" {
			url += "?date=" + *date
		}
		err = get(client, url)
	case "moisture":
		err = get(client, *addr+"/api/history/moisture")
	case "waterings":
		err = get(client, *addr+"/api/history/waterings")
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", *cmd)
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func get(client *http.Client, url string) error {
	resp, err := client.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return printResponse(resp)
}

func post(client *http.Client, url string, payload interface{}) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}
	resp, err := client.Post(url, "application/json", body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return printResponse(resp)
}

func printResponse(resp *http.Response) error {
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	var pretty bytes.Buffer
	if json.Indent(&pretty, data, "", "  ") == nil {
		fmt.Println(pretty.String())
	} else {
		fmt.Println(string(data))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("server returned %s", resp.Status)
	}
	return nil
}
