package config

import (
	"os"
	"path/filepath"
	"strings"
	"syscall"
)

// FixOwnership hands path, and any directories between it and the home
// directory, to the owner of $HOME. It only acts when hexit runs as root
// inside a home that belongs to someone else, e.g. via sudo.
func FixOwnership(path string) {
	if os.Getuid() != 0 {
		return
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return
	}
	uid, gid, ok := ownerOf(home)
	if !ok || uid == 0 {
		return
	}

	_ = os.Lchown(path, uid, gid)
	for dir := filepath.Dir(path); insideHome(home, dir); dir = filepath.Dir(dir) {
		if owner, _, ok := ownerOf(dir); !ok || owner == uid {
			return
		}
		_ = os.Lchown(dir, uid, gid)
	}
}

func ownerOf(path string) (uid, gid int, ok bool) {
	fi, err := os.Stat(path)
	if err != nil {
		return 0, 0, false
	}
	st, ok := fi.Sys().(*syscall.Stat_t)
	if !ok {
		return 0, 0, false
	}
	return int(st.Uid), int(st.Gid), true
}

// insideHome reports whether dir is strictly below home.
func insideHome(home, dir string) bool {
	rel, err := filepath.Rel(home, dir)
	return err == nil && rel != "." && rel != ".." && !strings.HasPrefix(rel, "../")
}
