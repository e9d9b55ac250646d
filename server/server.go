package server

import (
	"github.com/brettbedarf/treefs/config"
	"github.com/brettbedarf/treefs/filesystem"
	"github.com/brettbedarf/treefs/internal/util"
	"github.com/hanwen/go-fuse/v2/fuse"
)

// Server exposes a namespace to the host through a FUSE mount
type Server struct {
	fs     *filesystem.FileSystem
	cfg    *config.Config
	server *fuse.Server
}

// New creates a Server for fs; nothing is mounted until Serve
func New(fs *filesystem.FileSystem) *Server {
	return &Server{fs: fs, cfg: fs.Config()}
}

// Serve mounts the namespace at mountPoint and returns once the kernel has
// acknowledged the mount. Requests are served in the background.
func (s *Server) Serve(mountPoint string) error {
	logger := util.GetLogger("Server.Serve")
	opts := s.cfg.MountOptions
	srv, err := fuse.NewServer(NewFuseRaw(s.fs), mountPoint, &fuse.MountOptions{
		Name:   opts.Name,
		FsName: opts.FsName,
		Debug:  opts.Debug || s.cfg.LogLvl == util.TraceLevel,
		Logger: util.NewLogLogger("FuseServer", util.TraceLevel),
	})
	if err != nil {
		return err
	}
	s.server = srv

	go srv.Serve()
	if err := srv.WaitMount(); err != nil {
		return err
	}
	logger.Info().Str("mountPoint", mountPoint).Msg("Mounted")
	return nil
}

// Wait blocks until the mount is gone
func (s *Server) Wait() {
	if s.server != nil {
		s.server.Wait()
	}
}

// Unmount cleanly unmounts the filesystem.
func (s *Server) Unmount() error {
	if s.server == nil {
		return nil
	}
	return s.server.Unmount()
}
