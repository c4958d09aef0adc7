package platform

import (
	"runtime"
	"testing"
)

func TestGetPlatformInfo_ReportsRuntimeGOOSAndArch(t *testing.T) {
	info := GetPlatformInfo()
	if info.Name != runtime.GOOS {
		t.Errorf("expected Name to be runtime.GOOS (%s), got %s", runtime.GOOS, info.Name)
	}
	if info.Arch != runtime.GOARCH {
		t.Errorf("expected Arch to be runtime.GOARCH (%s), got %s", runtime.GOARCH, info.Arch)
	}
	if info.Version == "" {
		t.Error("expected a non-empty version string, even a fallback \"Unknown ...\" one")
	}
}
