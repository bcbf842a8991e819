package action

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geekwala/security-scan-action/pkg/ext"
	"github.com/geekwala/security-scan-action/pkg/geekwala"
	"github.com/geekwala/security-scan-action/pkg/mock"
	"github.com/geekwala/security-scan-action/pkg/risk"
)

func TestScanOutputs(t *testing.T) {
	t.Run("Should count active vulnerabilities only", func(t *testing.T) {
		resp := geekwala.Response{
			Success: true,
			Data: &geekwala.ScanData{
				Summary: geekwala.Summary{TotalPackages: 3, VulnerablePackages: 2, SafePackages: 1},
				Results: []geekwala.ScanResult{
					{Package: "lodash", Affected: true, Vulnerabilities: []geekwala.Vulnerability{
						{ID: "CVE-1", CVSSScore: lo.ToPtr(9.1)},
						{ID: "CVE-2", CVSSScore: lo.ToPtr(7.0), Ignored: true},
					}},
					{Package: "debug", Affected: true, Vulnerabilities: []geekwala.Vulnerability{
						{ID: "CVE-3", CVSSScore: lo.ToPtr(3.1), Ignored: true},
					}},
					{Package: "express"},
				},
			},
		}

		assert.Equal(t, []Output{
			{OutputTotalPackages, "3"},
			{OutputVulnerablePackages, "1"},
			{OutputSafePackages, "2"},
			{OutputCriticalCount, "1"},
			{OutputHighCount, "0"},
			{OutputMediumCount, "0"},
			{OutputLowCount, "0"},
			{OutputHasVulnerabilities, "true"},
			{OutputScanStatus, "FAIL"},
		}, ScanOutputs(resp, risk.StatusFail))
	})

	t.Run("Should report error of failed scan", func(t *testing.T) {
		assert.Equal(t, []Output{
			{OutputScanStatus, "ERROR"},
			{OutputHasVulnerabilities, "false"},
		}, ScanOutputs(geekwala.Response{Success: false}, risk.StatusPass))
	})
}

func TestOutputs_Set(t *testing.T) {
	t.Run("Should append outputs to file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "output")
		outputs := NewOutputs(path, ext.DefaultAmbassador)
		outputs.delimiter = func() string { return "EOF_1" }

		require.NoError(t, outputs.SetAll([]Output{
			{OutputScanStatus, "PASS"},
			{OutputIgnoredCount, "0"},
		}))
		require.NoError(t, outputs.Set("reasons", "first\nsecond"))

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "scan-status=PASS\nignored-count=0\nreasons<<EOF_1\nfirst\nsecond\nEOF_1\n", string(data))
	})

	t.Run("Should skip outputs without file", func(t *testing.T) {
		ambassador := ext.NewMockAmbassador()
		outputs := NewOutputs("", ambassador)

		require.NoError(t, outputs.Set(OutputScanStatus, "PASS"))
		ambassador.AssertNotCalled(t, "AppendFile")
	})

	t.Run("Should stop at first failure", func(t *testing.T) {
		ambassador := ext.NewMockAmbassador()
		mock.ApplyExpectations(t, ambassador, &mock.Expectation{
			Method:     "AppendFile",
			Args:       []interface{}{"/github/output", []byte("scan-status=PASS\n")},
			ReturnArgs: []interface{}{errors.New("disk full")},
		})
		outputs := NewOutputs("/github/output", ambassador)

		err := outputs.SetAll([]Output{
			{OutputScanStatus, "PASS"},
			{OutputIgnoredCount, "0"},
		})
		assert.EqualError(t, err, "setting output scan-status: disk full")
		ambassador.AssertNumberOfCalls(t, "AppendFile", 1)
	})

	t.Run("Should use unique delimiters by default", func(t *testing.T) {
		outputs := NewOutputs("", ext.DefaultAmbassador)
		first, second := outputs.delimiter(), outputs.delimiter()
		assert.NotEqual(t, first, second)
		assert.Regexp(t, `^ghadelimiter_[0-9a-f-]{36}$`, first)
	})
}
