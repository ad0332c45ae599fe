// Package update checks GitHub releases for a newer version of the app.
// It only reports availability; downloading and installing are handled by
// the platform installer, not this process.
package update

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// checkTimeout keeps the release lookup from ever blocking startup.
const checkTimeout = 5 * time.Second

// Info describes the latest known release relative to the running version.
type Info struct {
	Available      bool   `json:"available"`
	CurrentVersion string `json:"current_version"`
	LatestVersion  string `json:"latest_version,omitempty"`
	ReleaseNotes   string `json:"release_notes,omitempty"`
	ReleaseURL     string `json:"release_url,omitempty"`
}

// Checker polls the GitHub releases API for one repository.
type Checker struct {
	client  *http.Client
	baseURL string
	owner   string
	repo    string
	version string
	logger  *logrus.Logger
}

// NewChecker creates an update checker for owner/repo against the running
// version string (with or without a leading "v").
func NewChecker(owner, repo, version string, logger *logrus.Logger) *Checker {
	return &Checker{
		client:  &http.Client{Timeout: checkTimeout},
		baseURL: "https://api.github.com",
		owner:   owner,
		repo:    repo,
		version: version,
		logger:  logger,
	}
}

// WithBaseURL overrides the GitHub API base URL (tests).
func (c *Checker) WithBaseURL(base string) *Checker {
	c.baseURL = strings.TrimRight(base, "/")
	return c
}

type releaseResponse struct {
	TagName string `json:"tag_name"`
	Body    string `json:"body"`
	HTMLURL string `json:"html_url"`
}

// Check queries the latest release once. Network failures are returned to
// the caller; they are never fatal to the app.
func (c *Checker) Check(ctx context.Context) (*Info, error) {
	addr := fmt.Sprintf("%s/repos/%s/%s/releases/latest", c.baseURL, c.owner, c.repo)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, addr, nil)
	if err != nil {
		return nil, fmt.Errorf("creating update request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("checking for updates: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("checking for updates: unexpected status %s", resp.Status)
	}

	var release releaseResponse
	if err := json.NewDecoder(resp.Body).Decode(&release); err != nil {
		return nil, fmt.Errorf("decoding release: %w", err)
	}

	info := &Info{CurrentVersion: c.version}
	if compareVersions(release.TagName, c.version) > 0 {
		info.Available = true
		info.LatestVersion = release.TagName
		info.ReleaseNotes = release.Body
		info.ReleaseURL = release.HTMLURL
	}
	return info, nil
}

// Watch runs periodic checks in the background, delivering each available
// update over the returned channel. It owns no shared state; the consumer
// decides what to do with the notification.
func (c *Checker) Watch(ctx context.Context, interval time.Duration) <-chan Info {
	out := make(chan Info, 1)
	go func() {
		defer close(out)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		check := func() {
			info, err := c.Check(ctx)
			if err != nil {
				c.logger.WithError(err).Debug("update check failed")
				return
			}
			if info.Available {
				select {
				case out <- *info:
				default: // consumer hasn't drained the last one
				}
			}
		}

		check()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				check()
			}
		}
	}()
	return out
}

// parseVersion splits "v1.2.3" into its numeric triple. Malformed parts
// parse as zero so a bad tag never outranks a real version by accident.
func parseVersion(v string) [3]int {
	v = strings.TrimPrefix(strings.TrimSpace(v), "v")
	var out [3]int
	for i, part := range strings.SplitN(v, ".", 4) {
		if i >= 3 {
			break
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			break
		}
		out[i] = n
	}
	return out
}

// compareVersions returns >0 if a is newer than b, <0 if older, 0 if equal.
func compareVersions(a, b string) int {
	pa, pb := parseVersion(a), parseVersion(b)
	for i := 0; i < 3; i++ {
		if pa[i] != pb[i] {
			return pa[i] - pb[i]
		}
	}
	return 0
}
