package bufreader_test

import (
	"bufio"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/ninedraft/gemcore/internal/bufreader"
)

func TestReadLine(test *testing.T) {
	var t = func(name, input string, max int, want []string, wantErr error) {
		test.Run(name, func(test *testing.T) {
			var re = bufreader.New(io.NopCloser(strings.NewReader(input)), 16)
			var got []string
			for {
				var line, err = re.ReadLine(max)
				if errors.Is(err, io.EOF) {
					break
				}
				if err != nil {
					if !errors.Is(err, wantErr) {
						test.Fatalf("unexpected error %v, %v is expected", err, wantErr)
					}
					return
				}
				got = append(got, string(line))
			}
			if wantErr != nil {
				test.Fatalf("expected error %v, got lines %q", wantErr, got)
			}
			if strings.Join(got, "|") != strings.Join(want, "|") || len(got) != len(want) {
				test.Fatalf("expected %q, got %q", want, got)
			}
		})
	}

	t("empty", "", 10, nil, nil)
	t("single", "hello\n", 10, []string{"hello"}, nil)
	t("no terminator", "hello", 10, []string{"hello"}, nil)
	t("carriage return is kept", "a\r\nb\r\n", 10, []string{"a\r", "b\r"}, nil)
	t("empty lines", "\n\n", 10, []string{"", ""}, nil)
	t("longer than buffer", strings.Repeat("x", 40)+"\n", 64, []string{strings.Repeat("x", 40)}, nil)
	t("exactly max", strings.Repeat("x", 10)+"\n", 10, []string{strings.Repeat("x", 10)}, nil)
	t("too long", strings.Repeat("x", 11)+"\n", 10, nil, bufreader.ErrLineTooLong)
	t("too long without terminator", strings.Repeat("x", 100), 10, nil, bufreader.ErrLineTooLong)
}

func TestReadLineTerminated(test *testing.T) {
	var re = bufio.NewReaderSize(strings.NewReader("a\n\nb"), 16)
	var t = func(wantLine string, wantTerminated bool) {
		test.Helper()
		var line, terminated, err = bufreader.ReadLine(re, 10)
		if err != nil {
			test.Fatalf("unexpected error: %v", err)
		}
		if string(line) != wantLine || terminated != wantTerminated {
			test.Fatalf("expected (%q, %v), got (%q, %v)", wantLine, wantTerminated, line, terminated)
		}
	}
	t("a", true)
	t("", true)
	t("b", false)
	if _, _, err := bufreader.ReadLine(re, 10); !errors.Is(err, io.EOF) {
		test.Fatalf("expected io.EOF, got %v", err)
	}
}

func TestReadLineStopsEarly(test *testing.T) {
	var src = &countingReader{re: strings.NewReader(strings.Repeat("a", 1<<20))}
	var re = bufreader.New(io.NopCloser(src), 64)
	var _, err = re.ReadLine(128)
	if !errors.Is(err, bufreader.ErrLineTooLong) {
		test.Fatalf("unexpected error: %v", err)
	}
	if src.n > 256 {
		test.Fatalf("reader consumed %d bytes, the line limit is 128", src.n)
	}
}

type countingReader struct {
	re io.Reader
	n  int
}

func (c *countingReader) Read(p []byte) (int, error) {
	var n, err = c.re.Read(p)
	c.n += n
	return n, err
}
