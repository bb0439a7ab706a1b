package resolve

import (
	"fmt"
	"strings"

	"namegnome/internal/textutil"
)

// TVPath renders /tv/<show>/Season <NN>/<show> - S<NN>E<NN>[-E<NN>][ - <title>].<ext>.
func TVPath(show string, season, episodeStart, episodeEnd int, title, ext string) string {
	show = textutil.SanitizeFileName(show)
	span := fmt.Sprintf("S%02dE%02d", season, episodeStart)
	if episodeEnd > episodeStart {
		span += fmt.Sprintf("-E%02d", episodeEnd)
	}
	name := fmt.Sprintf("%s - %s", show, span)
	if title = textutil.SanitizeFileName(title); title != "" {
		name += " - " + title
	}
	return fmt.Sprintf("/tv/%s/Season %02d/%s%s", show, season, name, normalizeExt(ext))
}

// MoviePath renders /movies/<title> (<year>)/<title> (<year>).<ext>.
func MoviePath(title string, year int, ext string) string {
	title = textutil.SanitizeFileName(title)
	stem := title
	if year > 0 {
		stem = fmt.Sprintf("%s (%d)", title, year)
	}
	return fmt.Sprintf("/movies/%s/%s%s", stem, stem, normalizeExt(ext))
}

// MusicPath renders /music/<artist>/<album>/<NN> - <title>.<ext>.
func MusicPath(artist, album string, track int, title, ext string) string {
	return fmt.Sprintf("/music/%s/%s/%02d - %s%s",
		textutil.SanitizeFileName(artist),
		textutil.SanitizeFileName(album),
		track,
		textutil.SanitizeFileName(title),
		normalizeExt(ext),
	)
}

func normalizeExt(ext string) string {
	ext = strings.TrimSpace(ext)
	if ext == "" {
		return ""
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return strings.ToLower(ext)
}
