package support

import (
	"encoding/json"
	"errors"
	"fmt"
	"image/color"
	"os"
	"strings"

	"github.com/cucumber/godog"
	"github.com/disintegration/imaging"
)

// cliReport is the part of the JSON batch output the steps check.
type cliReport struct {
	Mode  string `json:"mode"`
	Items []struct {
		File   string `json:"file"`
		Frame  int    `json:"frame"`
		Result *struct {
			Payload  string `json:"payload"`
			Strategy string `json:"strategy"`
		} `json:"result"`
	} `json:"items"`
	Session *struct {
		FrameCount     int    `json:"frame_count"`
		LastSuccessful string `json:"last_successful"`
	} `json:"session"`
}

// RegisterCLISteps registers the command-line steps.
func (testCtx *TestContext) RegisterCLISteps(sc *godog.ScenarioContext) {
	sc.Step(`^an image "([^"]*)" with a QR code "([^"]*)"$`, testCtx.anImageWithQR)
	sc.Step(`^an image "([^"]*)" with an inverted QR code "([^"]*)"$`, testCtx.anImageWithInvertedQR)
	sc.Step(`^a blank image "([^"]*)"$`, testCtx.aBlankImage)
	sc.Step(`^a file "([^"]*)" containing "([^"]*)"$`, testCtx.aFileContaining)
	sc.Step(`^I run scanwell with "([^"]*)"$`, testCtx.iRunScanwellWith)
	sc.Step(`^the command should succeed$`, testCtx.theCommandShouldSucceed)
	sc.Step(`^the command should fail with "([^"]*)"$`, testCtx.theCommandShouldFailWith)
	sc.Step(`^the output should contain "([^"]*)"$`, testCtx.theOutputShouldContain)
	sc.Step(`^the JSON output should have (\d+) items?$`, testCtx.theJSONOutputShouldHaveItems)
	sc.Step(`^item (\d+) should decode to "([^"]*)" via "([^"]*)"$`, testCtx.itemShouldDecodeVia)
	sc.Step(`^item (\d+) should have no code$`, testCtx.itemShouldHaveNoCode)
	sc.Step(`^the session should have seen (\d+) frames with last strategy "([^"]*)"$`, testCtx.theSessionShouldHaveSeen)
}

func (testCtx *TestContext) anImageWithQR(name, payload string) error {
	return testCtx.writeQR(name, payload, false)
}

func (testCtx *TestContext) anImageWithInvertedQR(name, payload string) error {
	return testCtx.writeQR(name, payload, true)
}

func (testCtx *TestContext) aBlankImage(name string) error {
	return imaging.Save(imaging.New(64, 64, color.White), testCtx.path(name))
}

func (testCtx *TestContext) aFileContaining(name, content string) error {
	return os.WriteFile(testCtx.path(name), []byte(content), 0o600)
}

// iRunScanwellWith runs a space-separated command line. "{tmp}" expands to
// the scenario's temp directory.
func (testCtx *TestContext) iRunScanwellWith(line string) error {
	line = strings.ReplaceAll(line, "{tmp}", testCtx.TempDir)
	testCtx.RunCLI(strings.Fields(line)...)
	return nil
}

func (testCtx *TestContext) theCommandShouldSucceed() error {
	if testCtx.LastError != nil {
		return fmt.Errorf("command %v failed: %w\nstderr: %s", testCtx.LastArgs, testCtx.LastError, testCtx.LastStderr)
	}
	return nil
}

func (testCtx *TestContext) theCommandShouldFailWith(text string) error {
	if testCtx.LastError == nil {
		return fmt.Errorf("command %v succeeded, expected an error", testCtx.LastArgs)
	}
	if !strings.Contains(testCtx.LastError.Error(), text) {
		return fmt.Errorf("error %q does not contain %q", testCtx.LastError, text)
	}
	return nil
}

func (testCtx *TestContext) theOutputShouldContain(text string) error {
	text = strings.ReplaceAll(text, "{tmp}", testCtx.TempDir)
	if !strings.Contains(testCtx.LastOutput, text) {
		return fmt.Errorf("output does not contain %q:\n%s", text, testCtx.LastOutput)
	}
	return nil
}

func (testCtx *TestContext) report() (*cliReport, error) {
	var r cliReport
	if err := json.Unmarshal([]byte(testCtx.LastOutput), &r); err != nil {
		return nil, fmt.Errorf("output is not JSON: %w\n%s", err, testCtx.LastOutput)
	}
	return &r, nil
}

func (testCtx *TestContext) theJSONOutputShouldHaveItems(n int) error {
	r, err := testCtx.report()
	if err != nil {
		return err
	}
	if len(r.Items) != n {
		return fmt.Errorf("expected %d items, got %d", n, len(r.Items))
	}
	return nil
}

func (testCtx *TestContext) itemShouldDecodeVia(i int, payload, strategy string) error {
	r, err := testCtx.report()
	if err != nil {
		return err
	}
	if i < 1 || i > len(r.Items) {
		return fmt.Errorf("no item %d", i)
	}
	res := r.Items[i-1].Result
	if res == nil {
		return fmt.Errorf("item %d has no code", i)
	}
	if res.Payload != payload || res.Strategy != strategy {
		return fmt.Errorf("item %d decoded %q via %q, want %q via %q", i, res.Payload, res.Strategy, payload, strategy)
	}
	return nil
}

func (testCtx *TestContext) itemShouldHaveNoCode(i int) error {
	r, err := testCtx.report()
	if err != nil {
		return err
	}
	if i < 1 || i > len(r.Items) {
		return fmt.Errorf("no item %d", i)
	}
	if r.Items[i-1].Result != nil {
		return fmt.Errorf("item %d unexpectedly decoded %q", i, r.Items[i-1].Result.Payload)
	}
	return nil
}

func (testCtx *TestContext) theSessionShouldHaveSeen(frames int, strategy string) error {
	r, err := testCtx.report()
	if err != nil {
		return err
	}
	if r.Session == nil {
		return errors.New("output has no session")
	}
	if r.Session.FrameCount != frames || r.Session.LastSuccessful != strategy {
		return fmt.Errorf("session saw %d frames, last %q; want %d, %q",
			r.Session.FrameCount, r.Session.LastSuccessful, frames, strategy)
	}
	return nil
}
