package handlers

import (
	"net/http"
	"regexp"
	"runtime"
	"strings"

	"github.com/gin-gonic/gin"
)

// Version is set via ldflags at build time, usually to the output of git describe
var Version = "dev"

var describeSuffix = regexp.MustCompile(`^(.*?)(?:-(\d+)-g([0-9a-f]+))?(-dirty)?$`)
var bareCommit = regexp.MustCompile(`^[0-9a-f]{7,40}$`)

// parseGitDescribe turns `git describe --tags --always --dirty` output into a version and the
// commit it was built from. Builds past a tag or from a dirty tree get a ".dev" suffix.
func parseGitDescribe(s string) (version, commit string) {
	s = strings.TrimSpace(s)
	if bareCommit.MatchString(s) {
		return "dev+" + s, s
	}
	m := describeSuffix.FindStringSubmatch(s)
	if m == nil {
		return s, ""
	}
	version = strings.TrimPrefix(m[1], "v")
	commit = m[3]
	switch {
	case commit != "":
		version += ".dev+" + commit
	case m[4] != "":
		version += ".dev"
	}
	return version, commit
}

// GetVersion godoc
// @Summary Get version information
// @Description Returns version information about the portal server
// @Tags system
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /version [get]
func GetVersion(c *gin.Context) {
	version, commit := parseGitDescribe(Version)
	c.JSON(http.StatusOK, gin.H{
		"version":    version,
		"commit":     commit,
		"go_version": runtime.Version(),
		"os":         runtime.GOOS,
		"arch":       runtime.GOARCH,
	})
}
