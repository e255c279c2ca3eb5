package storage

import (
	"io"
	"net"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/goftp/server"

	log "github.com/sandia-minimega/dfs/pkg/minilog"
)

// fileDriver is a read-only goftp/server.Driver rooted at a storage
// server's local directory, for browsing/downloading its inventory
// directly over FTP. It never mutates the filesystem: Create/Delete/Copy
// always go through the Command interface so the naming server's
// bookkeeping stays consistent with what's on disk.
type fileDriver struct {
	root string
	server.Perm
}

type fileInfo struct {
	os.FileInfo

	mode  os.FileMode
	owner string
	group string
}

func (f *fileInfo) Mode() os.FileMode { return f.mode }
func (f *fileInfo) Owner() string     { return f.owner }
func (f *fileInfo) Group() string     { return f.group }

func (d *fileDriver) realPath(path string) string {
	parts := strings.Split(path, "/")
	return filepath.Join(append([]string{d.root}, parts...)...)
}

func (d *fileDriver) Init(conn *server.Conn) {}

func (d *fileDriver) ChangeDir(path string) error {
	info, err := os.Stat(d.realPath(path))
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return os.ErrInvalid
	}
	return nil
}

func (d *fileDriver) Stat(path string) (server.FileInfo, error) {
	real, err := filepath.Abs(d.realPath(path))
	if err != nil {
		return nil, err
	}
	f, err := os.Lstat(real)
	if err != nil {
		return nil, err
	}

	mode, err := d.Perm.GetMode(path)
	if err != nil {
		return nil, err
	}
	if f.IsDir() {
		mode |= os.ModeDir
	}
	owner, err := d.Perm.GetOwner(path)
	if err != nil {
		return nil, err
	}
	group, err := d.Perm.GetGroup(path)
	if err != nil {
		return nil, err
	}
	return &fileInfo{f, mode, owner, group}, nil
}

func (d *fileDriver) ListDir(path string, callback func(server.FileInfo) error) error {
	entries, err := os.ReadDir(d.realPath(path))
	if err != nil {
		return err
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)

	for _, name := range names {
		info, err := d.Stat(path + "/" + name)
		if err != nil {
			return err
		}
		if err := callback(info); err != nil {
			return err
		}
	}
	return nil
}

func (d *fileDriver) DeleteDir(path string) error               { return os.ErrPermission }
func (d *fileDriver) DeleteFile(path string) error              { return os.ErrPermission }
func (d *fileDriver) Rename(from, to string) error              { return os.ErrPermission }
func (d *fileDriver) MakeDir(path string) error                 { return os.ErrPermission }
func (d *fileDriver) PutFile(string, io.Reader, bool) (int64, error) {
	return 0, os.ErrPermission
}

func (d *fileDriver) GetFile(path string, offset int64) (int64, io.ReadCloser, error) {
	f, err := os.Open(d.realPath(path))
	if err != nil {
		return 0, nil, err
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return 0, nil, err
	}

	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		f.Close()
		return 0, nil, err
	}
	return info.Size(), f, nil
}

type fileDriverFactory struct {
	root string
	server.Perm
}

func (f *fileDriverFactory) NewDriver() (server.Driver, error) {
	return &fileDriver{f.root, f.Perm}, nil
}

// anonAuth accepts any credentials; the storage server's local root is
// not itself access-controlled, so FTP browsing is gated only by whether
// -ftp was passed at startup.
type anonAuth struct{}

func (anonAuth) CheckPasswd(user, pass string) (bool, error) { return true, nil }

// ftpFront is the optional read-only FTP listener a storage server can
// expose alongside its RPC skeletons.
type ftpFront struct {
	srv *server.Server
}

// startFTP starts a read-only FTP front-end serving root on addr. addr is
// host:port; an empty host binds all interfaces.
func startFTP(root, addr string) (*ftpFront, error) {
	host, port, err := splitHostPort(addr)
	if err != nil {
		return nil, err
	}

	factory := &fileDriverFactory{root: root, Perm: server.NewSimplePerm("storage", "storage")}
	opt := &server.ServerOpts{
		Factory: factory,
		Auth:    anonAuth{},
		Name:     "dfsstored",
		Hostname: host,
		Port:     port,
	}
	srv := server.NewServer(opt)

	go func() {
		if err := srv.ListenAndServe(); err != nil {
			log.Error("ftp front-end on %v: %v", addr, err)
		}
	}()

	log.Info("ftp front-end listening on %v:%v", host, port)
	return &ftpFront{srv: srv}, nil
}

func (f *ftpFront) Stop() error {
	return f.srv.Shutdown()
}

// splitHostPort parses addr ("host:port", ":port", or just "port") into a
// host (possibly empty, meaning all interfaces) and a numeric port.
func splitHostPort(addr string) (string, int, error) {
	if !strings.Contains(addr, ":") {
		addr = ":" + addr
	}
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return "", 0, err
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, err
	}
	return host, port, nil
}
