package ext

import (
	"os"
	"path/filepath"
)

var (
	DefaultAmbassador = &ambassador{}
)

// Ambassador the ambassador to the outside "world". Wraps methods that modify global state and hence make the code that
// use them very hard to test.
type Ambassador interface {
	Environ() []string
	LookupEnv(key string) (string, bool)
	Stat(name string) (os.FileInfo, error)
	ReadDir(name string) ([]os.DirEntry, error)
	ReadFile(name string) ([]byte, error)
	// WriteFile creates or truncates the named file, creating missing parent directories.
	WriteFile(name string, data []byte) error
	// AppendFile appends to the named file, creating it when missing.
	AppendFile(name string, data []byte) error
}

type ambassador struct {
}

func (a *ambassador) Environ() []string {
	return os.Environ()
}

func (a *ambassador) LookupEnv(key string) (string, bool) {
	return os.LookupEnv(key)
}

func (a *ambassador) Stat(name string) (os.FileInfo, error) {
	return os.Stat(name)
}

func (a *ambassador) ReadDir(name string) ([]os.DirEntry, error) {
	return os.ReadDir(name)
}

func (a *ambassador) ReadFile(name string) ([]byte, error) {
	return os.ReadFile(name)
}

func (a *ambassador) WriteFile(name string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(name), 0o755); err != nil {
		return err
	}
	return os.WriteFile(name, data, 0o644)
}

func (a *ambassador) AppendFile(name string, data []byte) (err error) {
	f, err := os.OpenFile(name, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	_, err = f.Write(data)
	return err
}
