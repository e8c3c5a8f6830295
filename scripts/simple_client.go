package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
)

// A minimal HTTP client for manual verification of the clock server.
// Set CLOCK_URL and CLOCK_AUTH_TOKEN to point it elsewhere.
func main() {
	baseURL := "http://127.0.0.1:7777"
	if u := os.Getenv("CLOCK_URL"); u != "" {
		baseURL = u
	}
	authToken := os.Getenv("CLOCK_AUTH_TOKEN")

	get(baseURL+"/health", authToken)
	get(baseURL+"/tools/list", authToken)
	post(baseURL+"/tools/call", authToken, map[string]any{"tool": "time/now"})
	get(baseURL+"/metrics", authToken)
}

func get(url, token string) {
	doRequest(http.MethodGet, url, token, nil)
}

func post(url, token string, body any) {
	doRequest(http.MethodPost, url, token, body)
}

func doRequest(method, url, token string, body any) {
	var r io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, url, r)
	if err != nil {
		fmt.Printf("new request: %v\n", err)
		os.Exit(1)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if method == http.MethodPost {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fmt.Printf("request failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	fmt.Printf("%s %s -> %d\n", method, url, resp.StatusCode)
	data, _ := io.ReadAll(resp.Body)
	fmt.Println(string(data))
}
