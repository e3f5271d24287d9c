package services

import (
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

var musicExtensions = map[string]bool{".mp3": true, ".wav": true, ".ogg": true, ".m4a": true}

// PickMusic returns a random track from dir, or "" when the directory is
// missing or holds no audio. Music is optional so this never fails.
func PickMusic(dir string) string {
	return pickMusic(dir, rand.Intn)
}

func pickMusic(dir string, intn func(int) int) string {
	if dir == "" {
		return ""
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}

	var tracks []string
	for _, e := range entries {
		if e.IsDir() || !musicExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		tracks = append(tracks, filepath.Join(dir, e.Name()))
	}
	if len(tracks) == 0 {
		return ""
	}
	sort.Strings(tracks)
	return tracks[intn(len(tracks))]
}
