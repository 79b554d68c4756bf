// Package pdfops covers the PDF manipulation surface: structure probes
// (page count, image streams), assembling PDFs from images, metadata
// stripping, page thumbnails, and stamping an invisible OCR text layer
// over scanned documents.
//
// Structure work happens in-process through pdfcpu; rasterization and
// recognition go through the external engines behind tool.Runner.
package pdfops

import (
	"fmt"
	"os"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// PageCount returns the number of pages in the PDF at path.
func PageCount(path string) (int, error) {
	n, err := api.PageCountFile(path)
	if err != nil {
		return 0, fmt.Errorf("page count %s: %w", path, err)
	}
	return n, nil
}

// HasImageStreams reports whether the PDF contains image XObjects, the
// marker of a scanned document.
func HasImageStreams(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	conf := model.NewDefaultConfiguration()
	ctx, err := api.ReadValidateAndOptimize(f, conf)
	if err != nil {
		return false, fmt.Errorf("pdfcpu read %s: %w", path, err)
	}

	if ctx.Optimize != nil {
		for pageNr := 1; pageNr <= ctx.PageCount; pageNr++ {
			if len(pdfcpu.ImageObjNrs(ctx, pageNr)) > 0 {
				return true, nil
			}
		}
	}
	// Fallback: scan the xref table for image subtype stream dicts.
	for _, entry := range ctx.Table {
		if entry == nil || entry.Free || entry.Compressed {
			continue
		}
		sd, ok := entry.Object.(types.StreamDict)
		if !ok {
			continue
		}
		if subtype, found := sd.Find("Subtype"); found {
			if name, isName := subtype.(types.Name); isName && name == "Image" {
				return true, nil
			}
		}
	}
	return false, nil
}

// FromImages assembles one PDF from the given image files, one page per
// image, preserving input order.
func FromImages(imagePaths []string, outPath string) error {
	if len(imagePaths) == 0 {
		return fmt.Errorf("no images to convert")
	}
	imp := pdfcpu.DefaultImportConfig()
	if err := api.ImportImagesFile(imagePaths, outPath, imp, nil); err != nil {
		return fmt.Errorf("import images: %w", err)
	}
	return nil
}

// infoKeys are the identifying entries StripMetadata removes. The
// producer entry comes back as the writing library's own stamp, which
// is the point: nothing about the original authoring chain survives.
var infoKeys = []string{"Author", "Creator", "Producer", "ModDate", "Keywords"}

// StripMetadata rewrites the PDF at inPath to outPath with identifying
// document-info entries removed.
func StripMetadata(inPath, outPath string) error {
	ctx, err := api.ReadContextFile(inPath)
	if err != nil {
		return fmt.Errorf("pdfcpu read %s: %w", inPath, err)
	}

	if ctx.Info != nil {
		d, err := ctx.DereferenceDict(*ctx.Info)
		if err != nil {
			return fmt.Errorf("info dict: %w", err)
		}
		for _, key := range infoKeys {
			d.Delete(key)
		}
	}
	ctx.XRefTable.Author = ""
	ctx.XRefTable.Creator = ""
	ctx.XRefTable.Producer = ""

	if err := api.WriteContextFile(ctx, outPath); err != nil {
		return fmt.Errorf("pdfcpu write %s: %w", outPath, err)
	}
	return nil
}
