// HTTP-based remote cache store, adapted from the teacher's http_cache.go: files travel as
// a tar stream, same as the teacher, but xz-compressed rather than gzipped so both cache
// backends share one compression codec.
package cache

import (
	"archive/tar"
	"bytes"
	"encoding/gob"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/ulikunitz/xz"

	"github.com/LilithGames/buildcache/src/cli"
	"github.com/LilithGames/buildcache/src/digest"
	"github.com/LilithGames/buildcache/src/files"
)

// mtime is stamped on every tar entry so two uploads of byte-identical content produce
// byte-identical tar streams, regardless of when they were built.
var mtime = time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)

type httpCache struct {
	url      string
	writable bool
	client   *retryablehttp.Client
}

// NewHTTPCache returns a Store backed by a remote HTTP server at url. Entries are PUT to
// url/entries/<hash> and GET from the same path; direct-mode bindings live under
// url/direct/<hash>. Lookups against a read-only remote still work; Add/AddDirect are no-ops
// when writable is false, matching the teacher's HTTPWriteable config flag.
func NewHTTPCache(url string, writable bool, timeout time.Duration) Store {
	client := retryablehttp.NewClient()
	client.Logger = &cli.HTTPLogWrapper{Log: log}
	client.HTTPClient.Timeout = timeout
	client.RetryMax = 2
	return &httpCache{url: url, writable: writable, client: client}
}

func (c *httpCache) entryURL(hash digest.Digest) string {
	return c.url + "/entries/" + hash.String()
}

func (c *httpCache) directURL(hash digest.Digest) string {
	return c.url + "/direct/" + hash.String()
}

func (c *httpCache) Lookup(hash digest.Digest, expected files.Table, hardLinks, createDirs bool) (Entry, bool, error) {
	body, ok, err := c.get(c.entryURL(hash))
	if err != nil || !ok {
		return Entry{}, ok, err
	}
	return c.unpack(body, expected, hardLinks, createDirs)
}

func (c *httpCache) LookupDirect(direct digest.Digest, expected files.Table, hardLinks, createDirs bool) (Entry, bool, error) {
	body, ok, err := c.get(c.directURL(direct))
	if err != nil || !ok {
		return Entry{}, false, err
	}
	var binding directBinding
	if err := gob.NewDecoder(bytes.NewReader(body)).Decode(&binding); err != nil {
		return Entry{}, false, err
	}
	for path, want := range binding.ImplicitInputs {
		got, err := digest.FileDigest(path)
		if err != nil || !got.Equal(want) {
			log.Debug("Remote direct-mode entry %s is stale (implicit input %s changed)", direct, path)
			return Entry{}, false, nil
		}
	}
	return c.Lookup(binding.Preprocessor, expected, hardLinks, createDirs)
}

func (c *httpCache) Add(hash digest.Digest, entry Entry, expected files.Table, hardLinks bool) error {
	if !c.writable {
		return nil
	}
	body, _, err := c.pack(entry, expected)
	if err != nil {
		return err
	}
	return c.put(c.entryURL(hash), body)
}

func (c *httpCache) AddDirect(direct, preprocessor digest.Digest, implicitInputs []string) error {
	if !c.writable {
		return nil
	}
	binding := directBinding{Preprocessor: preprocessor, ImplicitInputs: map[string]digest.Digest{}}
	for _, path := range implicitInputs {
		d, err := digest.FileDigest(path)
		if err != nil {
			log.Warning("Failed to stamp implicit input %s: %s", path, err)
			continue
		}
		binding.ImplicitInputs[path] = d
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(binding); err != nil {
		return err
	}
	return c.put(c.directURL(direct), buf.Bytes())
}

// pack tars entry.gob plus every present-or-required expected file into a single byte
// stream, ready to PUT to the remote.
func (c *httpCache) pack(entry Entry, expected files.Table) ([]byte, []string, error) {
	var buf bytes.Buffer
	xw, err := xz.NewWriter(&buf)
	if err != nil {
		return nil, nil, err
	}
	tw := tar.NewWriter(xw)

	var fileIDs []string
	for _, ef := range expected {
		f, err := os.Open(ef.Path)
		if os.IsNotExist(err) && !ef.Required {
			continue
		} else if err != nil {
			return nil, nil, err
		}
		info, statErr := f.Stat()
		if statErr != nil {
			f.Close()
			return nil, nil, statErr
		}
		hdr, err := tar.FileInfoHeader(info, "")
		if err != nil {
			f.Close()
			return nil, nil, err
		}
		hdr.Name = "files/" + ef.Role
		hdr.ModTime, hdr.AccessTime, hdr.ChangeTime = mtime, mtime, mtime
		if err := tw.WriteHeader(hdr); err != nil {
			f.Close()
			return nil, nil, err
		}
		if _, err := io.Copy(tw, f); err != nil {
			f.Close()
			return nil, nil, err
		}
		f.Close()
		fileIDs = append(fileIDs, ef.Role)
	}
	entry.FileIDs = fileIDs

	var metaBuf bytes.Buffer
	if err := gob.NewEncoder(&metaBuf).Encode(entry); err != nil {
		return nil, nil, err
	}
	hdr := &tar.Header{Name: "entry.gob", Size: int64(metaBuf.Len()), Mode: 0644, ModTime: mtime, AccessTime: mtime, ChangeTime: mtime}
	if err := tw.WriteHeader(hdr); err != nil {
		return nil, nil, err
	}
	if _, err := tw.Write(metaBuf.Bytes()); err != nil {
		return nil, nil, err
	}
	if err := tw.Close(); err != nil {
		return nil, nil, err
	}
	if err := xw.Close(); err != nil {
		return nil, nil, err
	}
	return buf.Bytes(), fileIDs, nil
}

// unpack reads an xz-compressed tar stream produced by pack, restoring each file it
// contains to the path named for its role in expected and returning the decoded Entry.
func (c *httpCache) unpack(body []byte, expected files.Table, hardLinks, createDirs bool) (Entry, bool, error) {
	xr, err := xz.NewReader(bytes.NewReader(body))
	if err != nil {
		return Entry{}, false, err
	}
	tr := tar.NewReader(xr)
	var entry Entry
	haveMeta := false
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		} else if err != nil {
			return Entry{}, false, err
		}
		if hdr.Name == "entry.gob" {
			if err := gob.NewDecoder(tr).Decode(&entry); err != nil {
				return Entry{}, false, err
			}
			haveMeta = true
			continue
		}
		role := hdr.Name[len("files/"):]
		expectedFile, ok := expected.Lookup(role)
		if !ok {
			continue
		}
		if createDirs {
			if err := os.MkdirAll(filepath.Dir(expectedFile.Path), 0755); err != nil {
				return Entry{}, false, err
			}
		}
		w, err := os.OpenFile(expectedFile.Path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, os.FileMode(hdr.Mode))
		if err != nil {
			return Entry{}, false, err
		}
		if _, err := io.Copy(w, tr); err != nil {
			w.Close()
			return Entry{}, false, err
		}
		w.Close()
	}
	if !haveMeta {
		return Entry{}, false, fmt.Errorf("http cache: response missing entry.gob")
	}
	return entry, true, nil
}

func (c *httpCache) get(url string) ([]byte, bool, error) {
	req, err := retryablehttp.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, false, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, false, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, false, nil
	} else if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, false, fmt.Errorf("http cache: %s: %s", resp.Status, string(b))
	}
	body, err := io.ReadAll(resp.Body)
	return body, true, err
}

func (c *httpCache) put(url string, body []byte) error {
	req, err := retryablehttp.NewRequest(http.MethodPut, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("http cache: put %s: %s: %s", url, resp.Status, string(b))
	}
	return nil
}
