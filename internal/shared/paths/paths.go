package paths

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Layout names
const (
	// IconsDir is the directory below the data dir holding stored icons
	IconsDir = "icons"

	// IconExt is the extension of stored icons, always PNG after normalization
	IconExt = ".png"

	// AppConfig is the record file inside each app folder
	AppConfig = "config.json"
)

// Icons returns the icons directory for a data dir
func Icons(dataDir string) string {
	return filepath.Join(dataDir, IconsDir)
}

// IconFile returns the stored icon path for appID
func IconFile(iconsDir, appID string) (string, error) {
	if err := ValidateAppID(appID); err != nil {
		return "", err
	}
	return filepath.Join(iconsDir, appID+IconExt), nil
}

// ValidateAppID checks that an app id is usable as a single file name:
// non-empty, no leading dot, and only letters, digits, '-', '_' and '.'
func ValidateAppID(appID string) error {
	if appID == "" {
		return fmt.Errorf("app ID cannot be empty")
	}
	if strings.HasPrefix(appID, ".") {
		return fmt.Errorf("app ID %q cannot start with a dot", appID)
	}
	for _, r := range appID {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '-', r == '_', r == '.':
		default:
			return fmt.Errorf("app ID %q contains invalid character %q", appID, r)
		}
	}
	return nil
}
