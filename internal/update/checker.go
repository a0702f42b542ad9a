package update

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	githubOwner = "loickal"
	githubRepo  = "email-insight"
	timeout     = 5 * time.Second
)

// APIURL is the GitHub latest-release endpoint; tests point it at a fake.
var APIURL = "https://api.github.com/repos/" + githubOwner + "/" + githubRepo + "/releases/latest"

type Release struct {
	TagName string `json:"tag_name"`
	Name    string `json:"name"`
	URL     string `json:"html_url"`
}

// CheckForUpdate reports whether a release newer than currentVersion exists.
// Dev and snapshot builds never check.
func CheckForUpdate(ctx context.Context, currentVersion string) (*Release, bool, error) {
	if currentVersion == "" || strings.HasPrefix(currentVersion, "dev") || strings.HasPrefix(currentVersion, "SNAPSHOT") {
		return nil, false, nil
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, APIURL, nil)
	if err != nil {
		return nil, false, err
	}
	req.Header.Set("Accept", "application/vnd.github.v3+json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, false, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var release Release
	if err := json.NewDecoder(resp.Body).Decode(&release); err != nil {
		return nil, false, err
	}

	return &release, IsVersionNewer(release.TagName, currentVersion), nil
}

// IsVersionNewer compares dotted numeric versions ("v1.2.10" > "1.2.9").
// Pre-release suffixes are ignored.
func IsVersionNewer(newVersion, currentVersion string) bool {
	a := parseVersion(newVersion)
	b := parseVersion(currentVersion)
	for i := 0; i < 3; i++ {
		if a[i] != b[i] {
			return a[i] > b[i]
		}
	}
	return false
}

func parseVersion(v string) [3]int {
	v = strings.TrimPrefix(strings.TrimSpace(v), "v")
	if i := strings.IndexAny(v, "-+"); i >= 0 {
		v = v[:i]
	}

	var out [3]int
	for i, part := range strings.SplitN(v, ".", 3) {
		n, err := strconv.Atoi(part)
		if err != nil {
			break
		}
		out[i] = n
	}
	return out
}
