// Package breach looks passwords up against a breach-corpus range API using
// the k-anonymity scheme: only the first five characters of the SHA-1 digest
// ever leave the process.
package breach

import (
	"bufio"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Checker reports whether a password appears in a known breach corpus.
type Checker interface {
	IsKnownBreached(ctx context.Context, password string) (bool, error)
}

type Client struct {
	baseURL string
	httpc   *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpc:   &http.Client{Timeout: timeout},
	}
}

func (c *Client) IsKnownBreached(ctx context.Context, password string) (bool, error) {
	sum := sha1.Sum([]byte(password))
	digest := strings.ToUpper(hex.EncodeToString(sum[:]))
	prefix, suffix := digest[:5], digest[5:]

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/range/"+prefix, nil)
	if err != nil {
		return false, err
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("breach range query failed: status %d", resp.StatusCode)
	}

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if hashPart, _, found := strings.Cut(line, ":"); found && hashPart == suffix {
			return true, nil
		}
	}
	return false, scanner.Err()
}

// NullChecker is used when no breach API is configured; every password passes.
type NullChecker struct{}

func (NullChecker) IsKnownBreached(ctx context.Context, password string) (bool, error) {
	return false, nil
}
