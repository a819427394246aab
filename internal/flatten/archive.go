package flatten

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"snapback/internal/services"
)

var zipMagic = []byte{'P', 'K', 0x03, 0x04}

// isZipArchive reports whether the file is a ZIP container, checking the
// extension first and the leading magic bytes otherwise. Share servers
// deliver archives without a .zip suffix often enough that the magic check
// is load-bearing.
func isZipArchive(path string) (bool, error) {
	if strings.EqualFold(filepath.Ext(path), ".zip") {
		return true, nil
	}
	file, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer file.Close()
	header := make([]byte, len(zipMagic))
	n, err := io.ReadFull(file, header)
	if err != nil {
		if n < len(zipMagic) {
			return false, nil
		}
		return false, err
	}
	return bytes.Equal(header, zipMagic), nil
}

// extractArchive unpacks every regular file in the archive into destDir and
// returns their paths. Member names are flattened to their base name; an
// overlay export never nests directories meaningfully.
func extractArchive(archivePath, destDir string) ([]string, error) {
	reader, err := zip.OpenReader(archivePath)
	if err != nil {
		return nil, services.Wrap(services.ErrAmbiguousArchive, "flatten", "extract", "open archive", err)
	}
	defer reader.Close()

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return nil, services.Wrap(services.ErrSourceUnavailable, "flatten", "extract", "create extract dir", err)
	}

	var members []string
	for _, member := range reader.File {
		if member.FileInfo().IsDir() {
			continue
		}
		name := filepath.Base(member.Name)
		if name == "." || name == ".." || strings.HasPrefix(name, "._") {
			continue
		}
		dest := filepath.Join(destDir, name)
		if err := extractMember(member, dest); err != nil {
			return nil, services.Wrap(services.ErrAmbiguousArchive, "flatten", "extract",
				fmt.Sprintf("extract member %s", member.Name), err)
		}
		members = append(members, dest)
	}
	return members, nil
}

func extractMember(member *zip.File, dest string) error {
	src, err := member.Open()
	if err != nil {
		return err
	}
	defer src.Close()
	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// Role classifies an archive member.
type Role int

const (
	RoleUnrecognized Role = iota
	RoleMain
	RoleOverlay
)

// Classifier decides the role of an archive member from its file name.
type Classifier interface {
	Classify(name string) Role
}

// DefaultClassifier implements the export's naming convention: the overlay
// is a PNG whose stem is or ends in "overlay", the main layer is any other
// media file.
type DefaultClassifier struct{}

func (DefaultClassifier) Classify(name string) Role {
	ext := strings.ToLower(filepath.Ext(name))
	stem := strings.ToLower(strings.TrimSuffix(filepath.Base(name), filepath.Ext(name)))
	if ext == ".png" && (stem == "overlay" || strings.HasSuffix(stem, "-overlay") || strings.HasSuffix(stem, "_overlay")) {
		return RoleOverlay
	}
	switch ext {
	case ".jpg", ".jpeg", ".png", ".webp", ".heic", ".mp4", ".mov", ".webm", ".mkv", ".avi":
		return RoleMain
	default:
		return RoleUnrecognized
	}
}

// pickLayers identifies the single main member and optional overlay.
// Anything else makes the archive ambiguous and the item fails rather than
// guessing which layer the user meant to keep.
func pickLayers(members []string, classifier Classifier) (main, overlay string, err error) {
	var mains, overlays []string
	for _, member := range members {
		switch classifier.Classify(filepath.Base(member)) {
		case RoleMain:
			mains = append(mains, member)
		case RoleOverlay:
			overlays = append(overlays, member)
		}
	}
	if len(mains) == 0 {
		return "", "", services.Wrap(services.ErrAmbiguousArchive, "flatten", "classify",
			errNoMainMember.Error(), nil)
	}
	if len(mains) > 1 {
		return "", "", services.Wrap(services.ErrAmbiguousArchive, "flatten", "classify",
			fmt.Sprintf("%d candidate main layers", len(mains)), nil)
	}
	if len(overlays) > 1 {
		return "", "", services.Wrap(services.ErrAmbiguousArchive, "flatten", "classify",
			fmt.Sprintf("%d candidate overlays", len(overlays)), nil)
	}
	main = mains[0]
	if len(overlays) == 1 {
		overlay = overlays[0]
	}
	return main, overlay, nil
}
