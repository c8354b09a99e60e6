package services

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"wesnoth-ladder-system/utils"
)

// maxReplaySize caps artifact downloads; anything bigger is not a real replay.
const maxReplaySize = 64 * 1024 * 1024

// FetchReplayArtifact retrieves raw replay bytes by location reference:
// http(s):// URLs hit the replay server, r2:// keys hit the archive bucket,
// anything else is read from the local filesystem (the server host mounts the
// replay directory directly).
func FetchReplayArtifact(ctx context.Context, location string) ([]byte, error) {
	switch {
	case strings.HasPrefix(location, "http://"), strings.HasPrefix(location, "https://"):
		return fetchReplayHTTP(ctx, location)
	case strings.HasPrefix(location, "r2://"):
		if !utils.R2Ready() {
			return nil, fmt.Errorf("replay %s needs R2 storage, which is not configured", location)
		}
		return utils.FetchObjectFromR2(ctx, strings.TrimPrefix(location, "r2://"))
	default:
		data, err := os.ReadFile(location)
		if err != nil {
			return nil, fmt.Errorf("failed to read replay file %s: %w", location, err)
		}
		return data, nil
	}
}

func fetchReplayHTTP(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request for %s: %w", url, err)
	}

	resp, err := utils.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download replay %s: %w", url, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("replay server returned %d for %s", resp.StatusCode, url)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxReplaySize))
	if err != nil {
		return nil, fmt.Errorf("failed to read replay body from %s: %w", url, err)
	}
	return data, nil
}
