package support

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"

	"github.com/MeKo-Tech/scanwell/internal/barcode"
	"github.com/MeKo-Tech/scanwell/internal/scan"
	"github.com/MeKo-Tech/scanwell/internal/server"
	"github.com/MeKo-Tech/scanwell/internal/strategy"
	"github.com/cucumber/godog"
)

// HTTPTestServerWrapper runs the scan API on an httptest server.
type HTTPTestServerWrapper struct {
	*httptest.Server
}

// RegisterServerSteps registers the HTTP API steps.
func (testCtx *TestContext) RegisterServerSteps(sc *godog.ScenarioContext) {
	sc.Step(`^the scan server is running$`, testCtx.theScanServerIsRunning)
	sc.Step(`^the scan server is running with (\d+) requests? per minute$`, testCtx.theScanServerIsRunningWithLimit)
	sc.Step(`^I GET "([^"]*)"$`, testCtx.iGET)
	sc.Step(`^I upload "([^"]*)" to "([^"]*)"$`, testCtx.iUploadTo)
	sc.Step(`^the response status should be (\d+)$`, testCtx.theResponseStatusShouldBe)
	sc.Step(`^the response JSON field "([^"]*)" should be "([^"]*)"$`, testCtx.theResponseJSONFieldShouldBe)
	sc.Step(`^the response should contain "([^"]*)"$`, testCtx.theResponseShouldContain)
}

func (testCtx *TestContext) startServer(mutate func(*server.Config)) error {
	decoder, err := barcode.NewZXing(barcode.Options{})
	if err != nil {
		return err
	}
	engine, err := scan.NewEngine(decoder)
	if err != nil {
		return err
	}
	cfg := server.Config{
		CORSOrigin:   "*",
		MaxUploadMB:  5,
		TimeoutSec:   10,
		ScanOptions:  scan.DefaultOptions(),
		MaxDimension: 1024,
		Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	if mutate != nil {
		mutate(&cfg)
	}
	srv, err := server.NewServer(cfg, engine, strategy.Default())
	if err != nil {
		return err
	}
	testCtx.HTTPTestServer = &HTTPTestServerWrapper{Server: httptest.NewServer(srv.Router())}
	return nil
}

func (testCtx *TestContext) theScanServerIsRunning() error {
	return testCtx.startServer(nil)
}

func (testCtx *TestContext) theScanServerIsRunningWithLimit(perMinute int) error {
	return testCtx.startServer(func(c *server.Config) {
		c.RateLimit = server.RateLimitConfig{Enabled: true, RequestsPerMinute: perMinute}
	})
}

func (testCtx *TestContext) record(resp *http.Response) error {
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	testCtx.LastHTTPStatusCode = resp.StatusCode
	testCtx.LastHTTPResponse = body
	return nil
}

func (testCtx *TestContext) iGET(path string) error {
	if testCtx.HTTPTestServer == nil {
		return fmt.Errorf("server is not running")
	}
	resp, err := http.Get(testCtx.HTTPTestServer.URL + path) //nolint:noctx // test request
	if err != nil {
		return err
	}
	return testCtx.record(resp)
}

func (testCtx *TestContext) iUploadTo(name, target string) error {
	if testCtx.HTTPTestServer == nil {
		return fmt.Errorf("server is not running")
	}
	data, err := os.ReadFile(testCtx.path(name))
	if err != nil {
		return err
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("image", name)
	if err != nil {
		return err
	}
	if _, err := part.Write(data); err != nil {
		return err
	}
	if err := writer.Close(); err != nil {
		return err
	}

	resp, err := http.Post(testCtx.HTTPTestServer.URL+target, writer.FormDataContentType(), &body) //nolint:noctx // test request
	if err != nil {
		return err
	}
	return testCtx.record(resp)
}

func (testCtx *TestContext) theResponseStatusShouldBe(status int) error {
	if testCtx.LastHTTPStatusCode != status {
		return fmt.Errorf("expected status %d, got %d: %s", status, testCtx.LastHTTPStatusCode, testCtx.LastHTTPResponse)
	}
	return nil
}

// theResponseJSONFieldShouldBe checks a dotted path such as "result.payload".
func (testCtx *TestContext) theResponseJSONFieldShouldBe(path, want string) error {
	var v interface{}
	if err := json.Unmarshal(testCtx.LastHTTPResponse, &v); err != nil {
		return fmt.Errorf("response is not JSON: %w", err)
	}
	for _, key := range strings.Split(path, ".") {
		obj, ok := v.(map[string]interface{})
		if !ok {
			return fmt.Errorf("field %q: %q is not an object", path, key)
		}
		v = obj[key]
	}
	if got := fmt.Sprint(v); got != want {
		return fmt.Errorf("field %q is %q, want %q", path, got, want)
	}
	return nil
}

func (testCtx *TestContext) theResponseShouldContain(text string) error {
	if !strings.Contains(string(testCtx.LastHTTPResponse), text) {
		return fmt.Errorf("response does not contain %q: %s", text, testCtx.LastHTTPResponse)
	}
	return nil
}
