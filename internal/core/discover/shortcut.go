package discover

import (
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf16"
)

// ShortcutExt is the reserved extension of shell link files
const ShortcutExt = ".lnk"

// Shell link layout constants
const (
	headerSize = 0x4C

	flagHasTargetIDList = 1 << 0
	flagHasLinkInfo     = 1 << 1
	flagHasName         = 1 << 2
	flagHasRelativePath = 1 << 3
	flagIsUnicode       = 1 << 7

	linkInfoVolumeIDAndLocalBasePath = 1 << 0
)

var errMalformedShortcut = errors.New("malformed shell link")

// IsShortcut reports whether path carries the shortcut extension
func IsShortcut(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ShortcutExt)
}

// ReadShortcut parses the shell link at path and returns its target.
// Relative targets are resolved against the shortcut's directory.
func ReadShortcut(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}

	target, err := ParseShortcut(data)
	if err != nil {
		return "", err
	}
	if target == "" {
		return "", nil
	}

	target = filepath.FromSlash(strings.ReplaceAll(target, `\`, "/"))
	if !filepath.IsAbs(target) {
		target = filepath.Join(filepath.Dir(path), target)
	}
	return filepath.Clean(target), nil
}

// ParseShortcut extracts the link target from raw shell link bytes.
// LocalBasePath + CommonPathSuffix from LinkInfo wins; otherwise the
// relative path string is returned. An empty result means no target.
func ParseShortcut(data []byte) (string, error) {
	if len(data) < headerSize || binary.LittleEndian.Uint32(data[0:4]) != headerSize {
		return "", errMalformedShortcut
	}

	flags := binary.LittleEndian.Uint32(data[20:24])
	offset := headerSize

	if flags&flagHasTargetIDList != 0 {
		size, ok := readU16(data, offset)
		if !ok {
			return "", errMalformedShortcut
		}
		offset += 2 + int(size)
	}

	if flags&flagHasLinkInfo != 0 {
		target, size, err := parseLinkInfo(data, offset)
		if err != nil {
			return "", err
		}
		if target != "" {
			return target, nil
		}
		offset += size
	}

	unicode := flags&flagIsUnicode != 0

	if flags&flagHasName != 0 {
		_, next, err := readStringData(data, offset, unicode)
		if err != nil {
			return "", err
		}
		offset = next
	}

	if flags&flagHasRelativePath != 0 {
		rel, _, err := readStringData(data, offset, unicode)
		if err != nil {
			return "", err
		}
		return rel, nil
	}

	return "", nil
}

// parseLinkInfo returns the local target (possibly empty) and the LinkInfo size
func parseLinkInfo(data []byte, offset int) (string, int, error) {
	if offset+28 > len(data) {
		return "", 0, errMalformedShortcut
	}

	size := int(binary.LittleEndian.Uint32(data[offset:]))
	if size < 28 || offset+size > len(data) {
		return "", 0, errMalformedShortcut
	}

	info := data[offset : offset+size]
	infoFlags := binary.LittleEndian.Uint32(info[8:12])
	if infoFlags&linkInfoVolumeIDAndLocalBasePath == 0 {
		return "", size, nil
	}

	basePathOffset := int(binary.LittleEndian.Uint32(info[16:20]))
	suffixOffset := int(binary.LittleEndian.Uint32(info[24:28]))

	base, ok := readCString(info, basePathOffset)
	if !ok {
		return "", 0, errMalformedShortcut
	}
	suffix, _ := readCString(info, suffixOffset)

	if base == "" {
		return "", size, nil
	}
	return base + suffix, size, nil
}

// readStringData reads a counted StringData entry and returns the next offset
func readStringData(data []byte, offset int, unicode bool) (string, int, error) {
	count, ok := readU16(data, offset)
	if !ok {
		return "", 0, errMalformedShortcut
	}
	offset += 2

	if !unicode {
		end := offset + int(count)
		if end > len(data) {
			return "", 0, errMalformedShortcut
		}
		return string(data[offset:end]), end, nil
	}

	end := offset + int(count)*2
	if end > len(data) {
		return "", 0, errMalformedShortcut
	}
	units := make([]uint16, count)
	for i := range units {
		units[i] = binary.LittleEndian.Uint16(data[offset+i*2:])
	}
	return string(utf16.Decode(units)), end, nil
}

func readU16(data []byte, offset int) (uint16, bool) {
	if offset+2 > len(data) {
		return 0, false
	}
	return binary.LittleEndian.Uint16(data[offset:]), true
}

func readCString(data []byte, offset int) (string, bool) {
	if offset <= 0 || offset >= len(data) {
		return "", false
	}
	end := offset
	for end < len(data) && data[end] != 0 {
		end++
	}
	return string(data[offset:end]), true
}
