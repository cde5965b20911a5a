// Package pdf pulls embedded raster images out of PDF documents so they can be
// scanned like any other frame.
package pdf

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/MeKo-Tech/scanwell/internal/frame"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// PageImage is one image embedded in a PDF page.
type PageImage struct {
	Page  int           `json:"page" yaml:"page"`
	Name  string        `json:"name" yaml:"name"`
	Frame *frame.Buffer `json:"-" yaml:"-"`
}

// Options controls extraction.
type Options struct {
	// Pages selects pages like "1-3,7". Empty means all pages.
	Pages string
	// UserPassword and OwnerPassword open encrypted documents.
	UserPassword  string
	OwnerPassword string
}

// ExtractImages extracts every embedded image from filename, ordered by page
// and then by name. Images that cannot be decoded are skipped.
func ExtractImages(filename string, opts Options) ([]PageImage, error) {
	pageNumbers, err := parsePageRange(opts.Pages)
	if err != nil {
		return nil, fmt.Errorf("invalid page range %q: %w", opts.Pages, err)
	}

	tempDir, err := os.MkdirTemp("", "scanwell-pdf-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}
	defer func() { _ = os.RemoveAll(tempDir) }()

	var selected []string
	for _, p := range pageNumbers {
		selected = append(selected, strconv.Itoa(p))
	}

	if err := extractImagesFile(filename, tempDir, selected, configuration(opts)); err != nil {
		return nil, fmt.Errorf("failed to extract images from PDF: %w", err)
	}

	base := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	images, err := collectExtractedImages(tempDir, base)
	if err != nil {
		return nil, fmt.Errorf("failed to process extracted images: %w", err)
	}
	return images, nil
}

// extractImagesFile runs pdfcpu's extraction. pdfcpu panics on some malformed
// documents; the panic is returned as an error.
func extractImagesFile(filename, dir string, pages []string, conf *model.Configuration) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed PDF: %v", r)
		}
	}()
	return api.ExtractImagesFile(filename, dir, pages, conf)
}

// PageCount returns the number of pages in filename.
func PageCount(filename string) (n int, err error) {
	defer func() {
		if r := recover(); r != nil {
			n, err = 0, fmt.Errorf("failed to read PDF: malformed PDF: %v", r)
		}
	}()
	n, err = api.PageCountFile(filename)
	if err != nil {
		return 0, fmt.Errorf("failed to read PDF: %w", err)
	}
	return n, nil
}

func configuration(opts Options) *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.UserPW = opts.UserPassword
	conf.OwnerPW = opts.OwnerPassword
	return conf
}

// collectExtractedImages loads the files pdfcpu wrote to dir. pdfcpu names
// them <base>_<page>_<resource>.<ext>; older releases used page_<page>_....
func collectExtractedImages(dir, base string) ([]PageImage, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var out []PageImage
	for _, e := range entries {
		if e.IsDir() || !frame.IsSupported(e.Name()) {
			continue
		}
		page, err := parsePageFromFilename(e.Name(), base)
		if err != nil {
			continue
		}
		buf, _, err := frame.Load(filepath.Join(dir, e.Name()))
		if err != nil {
			continue
		}
		out = append(out, PageImage{Page: page, Name: e.Name(), Frame: buf})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Page != out[j].Page {
			return out[i].Page < out[j].Page
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

// parsePageFromFilename extracts the page number from an extracted image name.
func parsePageFromFilename(filename, base string) (int, error) {
	rest := filename
	switch {
	case base != "" && strings.HasPrefix(filename, base+"_"):
		rest = strings.TrimPrefix(filename, base+"_")
	case strings.HasPrefix(filename, "page_"):
		rest = strings.TrimPrefix(filename, "page_")
	default:
		return 0, errors.New("not a page image")
	}

	token, _, found := strings.Cut(rest, "_")
	if !found {
		return 0, errors.New("invalid filename format")
	}
	page, err := strconv.Atoi(token)
	if err != nil || page < 1 {
		return 0, errors.New("invalid page number")
	}
	return page, nil
}

// parsePageRange parses "1-5", "1,3,5" or a mix into ascending unique pages.
func parsePageRange(pageRange string) ([]int, error) {
	if strings.TrimSpace(pageRange) == "" {
		return nil, nil
	}

	seen := make(map[int]bool)
	var pages []int
	for _, part := range strings.Split(pageRange, ",") {
		tokenPages, err := parseRangeToken(strings.TrimSpace(part))
		if err != nil {
			return nil, err
		}
		for _, p := range tokenPages {
			if !seen[p] {
				seen[p] = true
				pages = append(pages, p)
			}
		}
	}
	sort.Ints(pages)
	return pages, nil
}

func parseRangeToken(part string) ([]int, error) {
	if startStr, endStr, isRange := strings.Cut(part, "-"); isRange {
		if strings.Contains(endStr, "-") {
			return nil, fmt.Errorf("invalid range format: %s", part)
		}
		start, err := parsePage(startStr)
		if err != nil {
			return nil, fmt.Errorf("invalid start page: %s", startStr)
		}
		end, err := parsePage(endStr)
		if err != nil {
			return nil, fmt.Errorf("invalid end page: %s", endStr)
		}
		if start > end {
			return nil, fmt.Errorf("start page %d greater than end page %d", start, end)
		}
		out := make([]int, 0, end-start+1)
		for i := start; i <= end; i++ {
			out = append(out, i)
		}
		return out, nil
	}

	page, err := parsePage(part)
	if err != nil {
		return nil, fmt.Errorf("invalid page number: %s", part)
	}
	return []int{page}, nil
}

func parsePage(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, err
	}
	if n < 1 {
		return 0, fmt.Errorf("page %d out of range", n)
	}
	return n, nil
}
