// Copyright (C) 2020 Markus L. Noga
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.


package rest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mlnoga/bm3dlight/internal/ops"
	_ "github.com/mlnoga/bm3dlight/internal/ops/denoise" // registers the filtering operators
	"github.com/mlnoga/bm3dlight/internal/profile"
	"github.com/rs/zerolog"
)

// Creates the HTTP API router. Requests are logged at debug level
func NewRouter(logger zerolog.Logger, maxThreads int) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(logger))
	s := &server{logger: logger, maxThreads: maxThreads}
	api := r.Group("/api")
	{
		v1 := api.Group("/v1")
		{
			v1.GET("/ping", getPing)
			v1.GET("/profiles", getProfiles)
			v1.GET("/profiles/:name", getProfile)
			v1.POST("/run", s.postRun)
		}
	}
	return r
}

// Listens and serves the HTTP API on the given address, e.g. ":8080"
func Serve(addr string, logger zerolog.Logger, maxThreads int) error {
	gin.SetMode(gin.ReleaseMode)
	logger.Info().Str("addr", addr).Msg("serving HTTP API")
	return NewRouter(logger, maxThreads).Run(addr)
}

type server struct {
	logger     zerolog.Logger
	maxThreads int
}

func requestLogger(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug().Str("method", c.Request.Method).Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).Dur("elapsed", time.Since(start)).Msg("request")
	}
}

func getPing(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "pong",
	})
}

func getProfiles(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"profiles": profile.Names()})
}

func getProfile(c *gin.Context) {
	p, err := profile.Resolve(profile.Named(c.Param("name")))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, p)
}

func printArgs(logWriter io.Writer, prefix, suffix string, args interface{}) error {
	m, err := json.MarshalIndent(args, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintf(logWriter, "%s%s%s", prefix, string(m), suffix)
	return nil
}

type postRunArgs struct {
	FilePatterns []string        `json:"filePatterns" binding:"required"`
	Linearize    bool            `json:"linearize"`
	Operation    json.RawMessage `json:"operation" binding:"required"` // operator applied to each loaded image
}

// Loads the given files, applies the operation to each and streams the log as plain text
func (s *server) postRun(c *gin.Context) {
	var args postRunArgs
	if err := c.ShouldBindJSON(&args); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	op, err := ops.UnmarshalOperator(args.Operation)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	for _, p := range args.FilePatterns {
		if !ops.IsPathAllowed(p) {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("pattern %s outside current directory tree", p)})
			return
		}
	}

	logWriter := c.Writer
	logWriter.Header().Set("Content-Type", "text/plain")
	logWriter.WriteHeader(http.StatusOK)

	if err := printArgs(logWriter, "Operation:\n", "\n", op); err != nil {
		fmt.Fprintf(logWriter, "Error printing arguments: %s\n", err.Error())
		return
	}

	ctx := ops.NewContext(logWriter, s.logger)
	if s.maxThreads > 0 {
		ctx.MaxThreads = s.maxThreads
	}
	load := ops.NewOpLoadMany(args.FilePatterns)
	load.Linearize = args.Linearize
	seq := ops.NewOpSequence(load, ops.NewOpForEach(op))
	promises, err := seq.MakePromises(nil, ctx)
	if err == nil {
		_, err = ops.MaterializeAll(promises, ctx.MaxThreads, true)
	}
	if err != nil {
		fmt.Fprintf(logWriter, "error: %s\n", strings.ReplaceAll(err.Error(), "\n", "; "))
	} else {
		fmt.Fprintf(logWriter, "Done.\n")
	}
	logWriter.Flush()
}
