package main

import (
	"debug/elf"
	"fmt"
	"os"
	"path/filepath"

	"aqmon/fieldupdate/internal/cpio"
	"aqmon/fieldupdate/internal/fwimage"
)

// releaseEntryNames are the two fixed names the release artifact assigns
// its two pre-linked ELF images, one per slot.
var releaseEntryNames = [2]string{"agp0.elf", "agp1.elf"}

// packRelease builds the CPIO release artifact: the two slot ELF files,
// stored verbatim. The raw-binary conversion in internal/fwimage happens
// at push time, not pack time, so the archive stays a faithful copy of
// what was linked.
func packRelease(outPath, slot0ELF, slot1ELF string) error {
	sources := [2]string{slot0ELF, slot1ELF}
	var entries []cpio.Entry
	for i, src := range sources {
		data, err := os.ReadFile(src)
		if err != nil {
			return fmt.Errorf("read %s: %w", src, err)
		}
		entries = append(entries, cpio.Entry{
			Name: releaseEntryNames[i],
			Mode: 0o100644,
			Data: data,
		})
	}

	out, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("create %s: %w", outPath, err)
	}
	defer out.Close()

	if err := cpio.Write(out, entries); err != nil {
		return fmt.Errorf("write cpio archive: %w", err)
	}
	return nil
}

// unpackRelease extracts a release artifact's entries into destDir.
func unpackRelease(archivePath, destDir string) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("open %s: %w", archivePath, err)
	}
	defer f.Close()

	entries, err := cpio.Read(f)
	if err != nil {
		return fmt.Errorf("read cpio archive: %w", err)
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return err
	}
	for _, e := range entries {
		path := filepath.Join(destDir, filepath.Base(e.Name))
		if err := os.WriteFile(path, e.Data, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
		fmt.Printf("extracted %s (%d bytes)\n", path, len(e.Data))
	}
	return nil
}

// rawImageFromELF reads path as an ELF file and converts it to the raw,
// flashable binary internal/fwimage describes, bounded by maxSize (the
// target slot's capacity).
func rawImageFromELF(path string, maxSize int) ([]byte, error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open ELF %s: %w", path, err)
	}
	defer f.Close()

	return fwimage.ToRaw(f, maxSize)
}
