// Package dl fetches Minecraft client JARs from the launcher metadata service
// so block colors can be derived from the game's own textures.
package dl

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

const VERSION_MANIFEST_URL = "https://launchermeta.mojang.com/mc/game/version_manifest.json"

type DownloadMetadata struct {
	SHA1 string `json:"sha1"`
	Size int64  `json:"size"`
	URL  string `json:"url"`
}

type VersionMetadata struct {
	Downloads map[string]*DownloadMetadata `json:"downloads"`
}

type Version struct {
	Id          string `json:"id"`
	Type        string `json:"type"`
	Time        string `json:"time"`
	ReleaseTime string `json:"releaseTime"`
	URL         string `json:"url"`
}

type VersionManifest struct {
	Latest struct {
		Release  string `json:"release"`
		Snapshot string `json:"snapshot"`
	} `json:"latest"`
	Versions []Version `json:"versions"`
}

// GetRelease finds a version by id. An empty id selects the latest release.
func (v *VersionManifest) GetRelease(id string) (*Version, error) {
	if id == "" {
		id = v.Latest.Release
	}
	for i := range v.Versions {
		if v.Versions[i].Id == id {
			return &v.Versions[i], nil
		}
	}
	return nil, fmt.Errorf("version %q not found in manifest", id)
}

type Client struct {
	http        *http.Client
	manifestURL string
}

func NewClient() *Client {
	return &Client{
		http:        &http.Client{Timeout: 5 * time.Minute},
		manifestURL: VERSION_MANIFEST_URL,
	}
}

func (c *Client) get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	r, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	if r.StatusCode != http.StatusOK {
		r.Body.Close()
		return nil, fmt.Errorf("GET %s: unexpected status %s", url, r.Status)
	}
	return r, nil
}

func (c *Client) getJSON(ctx context.Context, url string, v any) error {
	r, err := c.get(ctx, url)
	if err != nil {
		return err
	}
	defer r.Body.Close()

	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("failed to decode %s: %w", url, err)
	}
	return nil
}

func (c *Client) GetVersionManifest(ctx context.Context) (*VersionManifest, error) {
	var manifest VersionManifest
	if err := c.getJSON(ctx, c.manifestURL, &manifest); err != nil {
		return nil, err
	}
	return &manifest, nil
}

func (c *Client) GetMetadata(ctx context.Context, v *Version) (*VersionMetadata, error) {
	var meta VersionMetadata
	if err := c.getJSON(ctx, v.URL, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// Get copies the download into dst, verifying its SHA1 when one is published.
func (c *Client) Get(ctx context.Context, d *DownloadMetadata, dst io.Writer) error {
	resp, err := c.get(ctx, d.URL)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	h := sha1.New()
	if _, err := io.Copy(io.MultiWriter(dst, h), resp.Body); err != nil {
		return err
	}

	if d.SHA1 != "" {
		if sum := hex.EncodeToString(h.Sum(nil)); sum != d.SHA1 {
			return fmt.Errorf("checksum mismatch for %s: got %s, want %s", d.URL, sum, d.SHA1)
		}
	}
	return nil
}

// DownloadClientJAR stores the client JAR of version (latest release when
// empty) at path. The file only appears once the download is verified.
func (c *Client) DownloadClientJAR(ctx context.Context, version, path string) error {
	manifest, err := c.GetVersionManifest(ctx)
	if err != nil {
		return err
	}

	release, err := manifest.GetRelease(version)
	if err != nil {
		return err
	}

	meta, err := c.GetMetadata(ctx, release)
	if err != nil {
		return err
	}

	client, ok := meta.Downloads["client"]
	if !ok {
		return fmt.Errorf("version %s has no client download", release.Id)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	tmp := path + ".part"
	out, err := os.Create(tmp)
	if err != nil {
		return err
	}

	err = c.Get(ctx, client, out)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to download client jar %s: %w", release.Id, err)
	}
	return os.Rename(tmp, path)
}
