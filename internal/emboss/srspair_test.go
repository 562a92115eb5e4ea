package emboss

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const needleOut = `########################################
# Program: needle
# Rundate: Tue 14 Jan 2020 10:12:01
# Commandline: needle
#    -gapopen 10.0
#    -gapextend 0.5
#    -asequence /data/a.fasta
#    -bsequence /data/b.fasta
#    -outfile /work/axb.needle
# Align_format: srspair
# Report_file: /work/axb.needle
########################################

#=======================================
#
# Aligned_sequences: 2
# 1: GP157_HUMAN
# 2: SPSB1_HUMAN
# Matrix: EBLOSUM62
# Gap_penalty: 10.0
# Extend_penalty: 0.5
#
# Length: 564
# Identity:      16/564 ( 2.8%)
# Similarity:    21/564 ( 3.7%)
# Gaps:         520/564 (92.2%)
# Score: 22.0
# 
#
#=======================================

GP157_HUMAN        1 MSAGLPLL-----------------------------------------      8
                     ||.|
SPSB1_HUMAN        1 MSAG---------------------------------------------      4

#---------------------------------------
#---------------------------------------
`

func TestParse_NeedleHeader(t *testing.T) {
	st, err := Parse("axb.needle", strings.NewReader(needleOut))
	require.NoError(t, err)

	assert.Equal(t, "GP157_HUMAN", st.Seq1)
	assert.Equal(t, "SPSB1_HUMAN", st.Seq2)
	assert.EqualValues(t, 564, st.Length)
	assert.EqualValues(t, 16, st.Identity)
	assert.EqualValues(t, 21, st.Similarity)
	assert.EqualValues(t, 520, st.Gaps)
	assert.InDelta(t, 22.0, st.Score, 1e-9)
	assert.InDelta(t, 0.028, st.PIdent, 1e-9)
	assert.InDelta(t, 0.037, st.PSimil, 1e-9)
}

func TestParse_TruncatedOutput(t *testing.T) {
	cut := needleOut[:strings.Index(needleOut, "# Gaps:")]
	_, err := Parse("axb.needle", strings.NewReader(cut))

	var pe *ParseError
	require.True(t, errors.As(err, &pe), "err=%v", err)
	assert.Contains(t, pe.Error(), "Gaps")
}

func TestParse_EmptyFile(t *testing.T) {
	_, err := Parse("empty.needle", strings.NewReader(""))
	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "empty.needle", pe.Path)
}

func TestParse_BadNumber(t *testing.T) {
	bad := strings.Replace(needleOut, "# Length: 564", "# Length: lots", 1)
	_, err := Parse("axb.needle", strings.NewReader(bad))
	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	assert.Positive(t, pe.Line)
}

func TestParseFile_SetsPath(t *testing.T) {
	p := filepath.Join(t.TempDir(), "axb.water")
	require.NoError(t, os.WriteFile(p, []byte(needleOut), 0o644))

	st, err := ParseFile(p)
	require.NoError(t, err)
	assert.Equal(t, p, st.File)

	_, err = ParseFile(filepath.Join(t.TempDir(), "missing.water"))
	assert.True(t, os.IsNotExist(err))
}
