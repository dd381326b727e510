package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

const (
	baseURL = "http://localhost:8080"
)

type importResponse struct {
	Results []struct {
		ExternalIDs []string `json:"external_ids"`
		TopicID     string   `json:"topic_id"`
		Created     bool     `json:"created"`
	} `json:"results"`
}

func main() {
	// Wait for server to start
	time.Sleep(2 * time.Second)

	fmt.Println("Starting Integration Test...")

	if _, ok := sendRequest("GET", "/healthz", nil); !ok {
		fmt.Println("FAILED: Health check")
		os.Exit(1)
	}

	suffix := fmt.Sprintf("%d", time.Now().UnixNano())
	payload := map[string]interface{}{
		"topics": []map[string]interface{}{
			{
				"external_ids": []string{"intro"},
				"xml":          `<section><title>Intro ` + suffix + `</title><para>See <xref linkend="install"/>.</para></section>`,
			},
			{
				"external_ids": []string{"install"},
				"xml":          `<section><title>Install ` + suffix + `</title><para>Run the installer.</para></section>`,
			},
		},
	}

	// 1. First import creates both topics
	fmt.Println("1. Importing document...")
	first, ok := importTopics(payload)
	if !ok || !first.Results[0].Created || !first.Results[1].Created {
		fmt.Println("FAILED: First import")
		os.Exit(1)
	}
	fmt.Println("PASSED: First import")

	// 2. Importing the same document again reuses them
	fmt.Println("2. Re-importing document...")
	second, ok := importTopics(payload)
	if !ok {
		fmt.Println("FAILED: Second import")
		os.Exit(1)
	}
	for i, r := range second.Results {
		if r.Created || r.TopicID != first.Results[i].TopicID {
			fmt.Printf("FAILED: topic %v was not reused\n", r.ExternalIDs)
			os.Exit(1)
		}
	}
	fmt.Println("PASSED: Second import")

	if _, ok := sendRequest("GET", "/topics/"+first.Results[0].TopicID, nil); !ok {
		fmt.Println("FAILED: Get topic")
		os.Exit(1)
	}
	fmt.Println("PASSED: Get topic")
}

func importTopics(payload interface{}) (importResponse, bool) {
	var res importResponse
	body, ok := sendRequest("POST", "/imports", payload)
	if !ok {
		return res, false
	}
	if err := json.Unmarshal(body, &res); err != nil || len(res.Results) != 2 {
		fmt.Printf("Unexpected response: %s\n", string(body))
		return res, false
	}
	return res, true
}

func sendRequest(method, endpoint string, payload interface{}) ([]byte, bool) {
	var body io.Reader
	if payload != nil {
		jsonBytes, _ := json.Marshal(payload)
		body = bytes.NewBuffer(jsonBytes)
	}

	req, err := http.NewRequest(method, baseURL+endpoint, body)
	if err != nil {
		fmt.Printf("Error creating request: %v\n", err)
		return nil, false
	}
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{}
	resp, err := client.Do(req)
	if err != nil {
		fmt.Printf("Error sending request: %v\n", err)
		return nil, false
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		fmt.Printf("Request failed with status %d: %s\n", resp.StatusCode, string(respBody))
		return nil, false
	}

	fmt.Printf("Response: %s\n", string(respBody))
	return respBody, true
}
