package ext

import (
	"os"

	"github.com/stretchr/testify/mock"
)

type MockAmbassador struct {
	mock.Mock
}

func NewMockAmbassador() *MockAmbassador {
	return &MockAmbassador{}
}

func (m *MockAmbassador) Environ() []string {
	args := m.Called()
	return args.Get(0).([]string)
}

func (m *MockAmbassador) LookupEnv(key string) (string, bool) {
	args := m.Called(key)
	return args.String(0), args.Bool(1)
}

func (m *MockAmbassador) Stat(name string) (os.FileInfo, error) {
	args := m.Called(name)
	info, _ := args.Get(0).(os.FileInfo)
	return info, args.Error(1)
}

func (m *MockAmbassador) ReadDir(name string) ([]os.DirEntry, error) {
	args := m.Called(name)
	entries, _ := args.Get(0).([]os.DirEntry)
	return entries, args.Error(1)
}

func (m *MockAmbassador) ReadFile(name string) ([]byte, error) {
	args := m.Called(name)
	data, _ := args.Get(0).([]byte)
	return data, args.Error(1)
}

func (m *MockAmbassador) WriteFile(name string, data []byte) error {
	args := m.Called(name, data)
	return args.Error(0)
}

func (m *MockAmbassador) AppendFile(name string, data []byte) error {
	args := m.Called(name, data)
	return args.Error(0)
}
