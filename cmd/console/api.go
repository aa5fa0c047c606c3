package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/disparter/toguwaka-discord-game-sub002/pkg/engine"
)

func testConnection(client *http.Client, baseURL string) bool {
	resp, err := client.Get(baseURL + "/health")
	if err != nil {
		return false
	}
	defer func() {
		_ = resp.Body.Close() // Ignore error in defer
	}()
	return resp.StatusCode == http.StatusOK
}

func decodePresentation(resp *http.Response) (*engine.Presentation, error) {
	defer func() {
		_ = resp.Body.Close() // Ignore error in defer
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errorResp ErrorResponse
		if err := json.Unmarshal(body, &errorResp); err != nil {
			return nil, fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(body))
		}
		return nil, fmt.Errorf("%s", errorResp.Error)
	}

	var p engine.Presentation
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("failed to parse presentation: %w", err)
	}
	return &p, nil
}

func getPresentation(client *http.Client, baseURL, playerID string) (*engine.Presentation, error) {
	resp, err := client.Get(fmt.Sprintf("%s/v1/story/%s", baseURL, playerID))
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	return decodePresentation(resp)
}

func postContinue(client *http.Client, baseURL, playerID string) (*engine.Presentation, error) {
	resp, err := client.Post(fmt.Sprintf("%s/v1/story/%s/continue", baseURL, playerID), "application/json", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	return decodePresentation(resp)
}

func postChoice(client *http.Client, baseURL, playerID string, choice int) (*engine.Presentation, error) {
	payload, err := json.Marshal(ChoiceRequest{Choice: choice})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	resp, err := client.Post(
		fmt.Sprintf("%s/v1/story/%s/choice", baseURL, playerID),
		"application/json",
		bytes.NewBuffer(payload),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	return decodePresentation(resp)
}
