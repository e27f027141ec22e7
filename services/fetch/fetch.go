package fetchsvc

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/pkg/errors"

	"github.com/trezcool/rollcall/core"
	"github.com/trezcool/rollcall/core/importer"
)

const (
	userAgent       = "Mozilla/5.0 (compatible; rollcall-importer/1.0)"
	defaultMaxBytes = 20 << 20
	maxPageBytes    = 2 << 20
)

var (
	DefaultScreenshotHosts = []string{"prnt.sc", "prntscr.com", "imgur.com", "gyazo.com"}

	// errors
	errUnresolvable = errors.New("cannot download link")
)

// Fetcher resolves share links to their downloadable resource and downloads it.
type Fetcher struct {
	client          *http.Client
	maxBytes        int64
	screenshotHosts []string
}

var _ importer.Fetcher = (*Fetcher)(nil)

func NewFetcher(conf core.ImportConfig) *Fetcher {
	timeout := conf.FetchTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return NewFetcherWithClient(&http.Client{Timeout: timeout}, conf)
}

func NewFetcherWithClient(client *http.Client, conf core.ImportConfig) *Fetcher {
	maxBytes := conf.MaxDownloadBytes
	if maxBytes <= 0 {
		maxBytes = defaultMaxBytes
	}
	hosts := append([]string(nil), DefaultScreenshotHosts...)
	for _, h := range conf.ScreenshotHosts {
		if h = core.CleanString(h, true /* lower */); h != "" {
			hosts = append(hosts, h)
		}
	}
	return &Fetcher{client: client, maxBytes: maxBytes, screenshotHosts: hosts}
}

// linkError is the user-facing error for a link that cannot be turned into a document.
func linkError(rawURL, reason string) error {
	msg := fmt.Sprintf("cannot download %s: %s", rawURL, reason)
	return core.NewValidationError(errors.Wrap(errUnresolvable, msg), core.FieldError{Field: "url", Error: msg})
}

// Fetch downloads the document behind rawURL, rewriting known share links first.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (importer.Document, error) {
	rawURL = strings.TrimSpace(rawURL)
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return importer.Document{}, linkError(rawURL, "not a valid http(s) link")
	}

	if f.isScreenshotHost(u.Hostname()) {
		if u, err = f.screenshotImage(ctx, u); err != nil {
			return importer.Document{}, linkError(rawURL, err.Error())
		}
	} else {
		u = RewriteShareLink(u)
	}

	doc, err := f.download(ctx, u)
	if err != nil {
		return importer.Document{}, linkError(rawURL, err.Error())
	}
	return doc, nil
}

func (f *Fetcher) isScreenshotHost(hostname string) bool {
	hostname = strings.ToLower(hostname)
	for _, h := range f.screenshotHosts {
		if hostname == h || strings.HasSuffix(hostname, "."+h) {
			return true
		}
	}
	return false
}

func (f *Fetcher) get(ctx context.Context, u *url.URL) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "request failed")
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_ = resp.Body.Close()
		return nil, errors.Errorf("server answered %d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}
	return resp, nil
}

func (f *Fetcher) download(ctx context.Context, u *url.URL) (importer.Document, error) {
	resp, err := f.get(ctx, u)
	if err != nil {
		return importer.Document{}, err
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return importer.Document{}, errors.Wrap(err, "reading response")
	}
	if int64(len(data)) > f.maxBytes {
		return importer.Document{}, errors.Errorf("file is larger than %d bytes", f.maxBytes)
	}

	sniffed := mimetype.Detect(data)
	name := filename(resp.Header.Get("Content-Disposition"), resp.Request.URL)
	if _, err = importer.FormatFromFilename(name); err != nil {
		if sniffed.Is("text/html") {
			return importer.Document{}, errors.New("the link returned a web page instead of a file; make sure it is shared publicly")
		}
		name = strings.TrimSuffix(name, path.Ext(name)) + sniffed.Extension()
	}

	return importer.Document{Name: name, ContentType: sniffed.String(), Data: data}, nil
}

// filename takes the name from a Content-Disposition header, else from the last path segment of u.
func filename(disposition string, u *url.URL) string {
	if disposition != "" {
		if _, params, err := mime.ParseMediaType(disposition); err == nil {
			if name := path.Base(strings.ReplaceAll(params["filename"], `\`, "/")); name != "" && name != "." && name != "/" {
				return name
			}
		}
	}
	if name := path.Base(u.Path); name != "" && name != "." && name != "/" {
		return name
	}
	return "download"
}
