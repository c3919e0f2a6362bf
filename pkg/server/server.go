// Package server provides the Echo web server for the BPM analyzer.
package server

import (
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/nzoschke/energybpm/pkg/analysis"
	"github.com/nzoschke/energybpm/pkg/detector"
)

// maxBodyBytes bounds POST /api/analyze bodies.
const maxBodyBytes = "256M"

// Track represents a track in the music library.
type Track struct {
	Name     string `json:"name"`
	Path     string `json:"path"`
	HasJSON  bool   `json:"has_json"`
	JSONPath string `json:"json_path,omitempty"`
	BPM      *int   `json:"bpm,omitempty"`
}

// Server serves the music library and the analyzer API.
type Server struct {
	analyzer *analysis.Analyzer
	musicDir string
	logger   *log.Logger
}

// New creates a Server for musicDir.
func New(analyzer *analysis.Analyzer, musicDir string, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New("server")
	}
	return &Server{analyzer: analyzer, musicDir: musicDir, logger: logger}
}

// Echo builds the Echo app with all routes.
func (s *Server) Echo() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Logger = s.logger

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(middleware.BodyLimit(maxBodyBytes))

	// Routes
	e.GET("/api/health", s.health)
	e.GET("/api/music", s.listMusic)
	e.GET("/api/music/*", s.serveMusic)
	e.POST("/api/analyze", s.analyze)

	return e
}

// Run starts the web server on addr.
func (s *Server) Run(addr string) error {
	return s.Echo().Start(addr)
}

func (s *Server) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// listMusic returns a list of all tracks in the music directory.
func (s *Server) listMusic(c echo.Context) error {
	tracks := []Track{}

	err := filepath.WalkDir(s.musicDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		ext := strings.ToLower(filepath.Ext(path))
		if !isAudioFile(ext) {
			return nil
		}

		relPath, err := filepath.Rel(s.musicDir, path)
		if err != nil {
			return err
		}
		jsonPath := analysis.SidecarPath(path)

		track := Track{
			Name: strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
			Path: filepath.ToSlash(relPath),
		}

		if ta, err := analysis.ReadTrackAnalysis(jsonPath); err == nil {
			track.HasJSON = true
			track.JSONPath = filepath.ToSlash(analysis.SidecarPath(relPath))
			if ta.Error == "" {
				bpm := ta.BPM
				track.BPM = &bpm
			}
		}

		tracks = append(tracks, track)
		return nil
	})

	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, tracks)
}

// serveMusic serves audio files and JSON analysis files from the music directory.
func (s *Server) serveMusic(c echo.Context) error {
	path := c.Param("*")
	decodedPath, err := url.PathUnescape(path)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid path encoding")
	}

	// Security: prevent directory traversal
	if strings.Contains(decodedPath, "..") {
		return echo.NewHTTPError(http.StatusForbidden, "invalid path")
	}
	fullPath := filepath.Join(s.musicDir, decodedPath)

	info, err := os.Stat(fullPath)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "file not found")
	}
	if info.IsDir() {
		return echo.NewHTTPError(http.StatusForbidden, "cannot serve directory")
	}

	ext := strings.ToLower(filepath.Ext(decodedPath))
	if isAudioFile(ext) {
		return c.File(fullPath)
	}
	if ext == ".json" {
		data, err := os.ReadFile(fullPath)
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		var sidecar map[string]any
		if err := json.Unmarshal(data, &sidecar); err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, "invalid JSON")
		}
		return c.JSON(http.StatusOK, sidecar)
	}
	return echo.NewHTTPError(http.StatusForbidden, "file type not allowed")
}

// analyzeResponse is the body returned by POST /api/analyze.
type analyzeResponse struct {
	BPM          int                     `json:"bpm"`
	Beats        int                     `json:"beats"`
	TotalSamples int                     `json:"total_samples"`
	Duration     float64                 `json:"duration"`
	Windows      []detector.WindowReport `json:"windows,omitempty"`
}

// analyze estimates the BPM of text samples posted in the request body.
// Pass ?windows=true to include per-window diagnostics.
func (s *Server) analyze(c echo.Context) error {
	samples, err := analysis.ReadText(c.Request().Body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	result, err := s.analyzer.AnalyzeSamples(samples, 0)
	switch {
	case errors.Is(err, detector.ErrInvalidInput), errors.Is(err, detector.ErrInsufficientSamples):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	case err != nil:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	resp := analyzeResponse{
		BPM:          result.BPM,
		Beats:        result.Beats,
		TotalSamples: result.TotalSamples,
		Duration:     result.Duration(),
	}
	if c.QueryParam("windows") == "true" {
		resp.Windows = result.Windows
	}

	s.logger.Infoj(log.JSON{"bpm": resp.BPM, "beats": resp.Beats, "samples": resp.TotalSamples})

	return c.JSON(http.StatusOK, resp)
}

// isAudioFile returns true if the extension is a supported audio format.
func isAudioFile(ext string) bool {
	switch ext {
	case ".mp3", ".wav", ".txt", ".dat":
		return true
	default:
		return false
	}
}
