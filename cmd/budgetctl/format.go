package main

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
)

func enabled(b bool) string {
	if b {
		return "enabled"
	}
	return "disabled"
}

func fmtRatio(r float64) string {
	return strconv.FormatFloat(r, 'f', -1, 64)
}

func removeIfExists(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
