package spreadsheet

import (
	"bytes"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/trezcool/asistencia/core"
	"github.com/trezcool/asistencia/core/roster"
)

func rowStrings(rows []roster.Row) [][]string {
	out := make([][]string, 0, len(rows))
	for _, row := range rows {
		values := make([]string, 0, len(row))
		for _, c := range row {
			values = append(values, c.String())
		}
		out = append(out, values)
	}
	return out
}

func xlsxBytes(t *testing.T, rows [][]interface{}) []byte {
	t.Helper()

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	sheet := f.GetSheetName(0)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		row := row
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func TestReader_Validate(t *testing.T) {
	rd := NewReader(0)

	tests := []struct {
		name     string
		filename string
		size     int64
		wantErr  error
	}{
		{name: "xlsx", filename: "lista.xlsx", size: 1024},
		{name: "upper case xls", filename: "LISTA.XLS", size: 1024},
		{name: "csv at the limit", filename: "lista.csv", size: DefaultMaxSize},
		{name: "pdf", filename: "lista.pdf", size: 1024, wantErr: ErrInvalidExtension},
		{name: "no extension", filename: "lista", size: 1024, wantErr: ErrInvalidExtension},
		{name: "too large", filename: "lista.xlsx", size: DefaultMaxSize + 1, wantErr: ErrFileTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := rd.Validate(tt.filename, tt.size)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			var vErr *core.ValidationError
			require.True(t, errors.As(err, &vErr), "want a *core.ValidationError, got %T", err)
			assert.Equal(t, tt.wantErr, vErr.Err)
		})
	}
}

func TestNewReader_maxSize(t *testing.T) {
	tests := []struct {
		name    string
		maxSize int64
		want    int64
		wantMsg string
	}{
		{name: "default", maxSize: 0, want: DefaultMaxSize, wantMsg: "the file is too large: 10MB maximum"},
		{name: "negative", maxSize: -1, want: DefaultMaxSize, wantMsg: "the file is too large: 10MB maximum"},
		{name: "over the hard limit", maxSize: 1 << 30, want: DefaultMaxSize, wantMsg: "the file is too large: 10MB maximum"},
		{name: "smaller", maxSize: 512 << 10, want: 512 << 10, wantMsg: "the file is too large: 512KB maximum"},
		{name: "tiny", maxSize: 64, want: 64, wantMsg: "the file is too large: 64 bytes maximum"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rd := NewReader(tt.maxSize)
			assert.Equal(t, tt.want, rd.MaxSize())

			err := rd.Validate("lista.csv", tt.want+1)
			var vErr *core.ValidationError
			require.True(t, errors.As(err, &vErr))
			require.Len(t, vErr.Fields, 1)
			assert.Equal(t, "file", vErr.Fields[0].Field)
			assert.Equal(t, tt.wantMsg, vErr.Fields[0].Error)
		})
	}
}

func TestReader_Read_csv(t *testing.T) {
	rd := NewReader(0)

	tests := []struct {
		name string
		data []byte
		want [][]string
	}{
		{
			name: "comma separated",
			data: []byte("Nombres,Apellidos\nMaria,Garcia\n  Jose ,Quispe\n"),
			want: [][]string{{"Nombres", "Apellidos"}, {"Maria", "Garcia"}, {"Jose", "Quispe"}},
		},
		{
			name: "semicolon separated with BOM",
			data: append([]byte{0xEF, 0xBB, 0xBF}, []byte("Nombres;Apellidos\r\nMaria;Garcia\r\n")...),
			want: [][]string{{"Nombres", "Apellidos"}, {"Maria", "Garcia"}},
		},
		{
			name: "trailing empty fields are dropped",
			data: []byte("Nombres,Apellidos\nMaria,\nJuan Perez\nLuis, ,\n"),
			want: [][]string{{"Nombres", "Apellidos"}, {"Maria"}, {"Juan Perez"}, {"Luis"}},
		},
		{
			name: "trailing delimiter",
			data: []byte("Nombres;Apellidos;\nAna;Gomez;\n"),
			want: [][]string{{"Nombres", "Apellidos"}, {"Ana", "Gomez"}},
		},
		{
			name: "blank lines between records are kept",
			data: []byte("\nNombres,Apellidos\nAna,Gomez\n\n\nLuis,Rojas\n"),
			want: [][]string{{"Nombres", "Apellidos"}, {"Ana", "Gomez"}, {}, {}, {"Luis", "Rojas"}},
		},
		{
			name: "quoted line breaks",
			data: []byte("Nombres,Apellidos\n\"Ana\nMaria\",Gomez\n\nLuis,Rojas\n"),
			want: [][]string{{"Nombres", "Apellidos"}, {"Ana\nMaria", "Gomez"}, {}, {"Luis", "Rojas"}},
		},
		{
			name: "windows-1252",
			data: []byte("Nombre completo\nJos\xe9 Pe\xf1a\n"),
			want: [][]string{{"Nombre completo"}, {"José Peña"}},
		},
		{
			name: "decomposed accents are composed",
			data: []byte("Nombres,Apellidos\nJose\u0301,Pen\u0303a\n"),
			want: [][]string{{"Nombres", "Apellidos"}, {"José", "Peña"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows, err := rd.Read("lista.csv", int64(len(tt.data)), bytes.NewReader(tt.data))
			require.NoError(t, err)
			assert.Equal(t, tt.want, rowStrings(rows))
		})
	}
}

func TestReader_Read_csvRowPositions(t *testing.T) {
	rd := NewReader(0)

	tests := []struct {
		name string
		data []byte
		want []roster.Record
	}{
		{
			name: "trailing delimiter keeps the two-column layout",
			data: []byte("Nombres;Apellidos;\nAna;Gomez;\nLuis;Rojas;\n"),
			want: []roster.Record{
				{GivenNames: "Ana", Surnames: "Gomez", OriginalOrder: 1},
				{GivenNames: "Luis", Surnames: "Rojas", OriginalOrder: 2},
			},
		},
		{
			name: "blank line counts as a row",
			data: []byte("Nombres,Apellidos\nAna,Gomez\n\nLuis,Rojas\n"),
			want: []roster.Record{
				{GivenNames: "Ana", Surnames: "Gomez", OriginalOrder: 1},
				{GivenNames: "Luis", Surnames: "Rojas", OriginalOrder: 3},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows, err := rd.Read("lista.csv", int64(len(tt.data)), bytes.NewReader(tt.data))
			require.NoError(t, err)
			assert.Equal(t, tt.want, roster.Normalize(rows).Records)
		})
	}
}

func TestReader_Read_xlsx(t *testing.T) {
	rd := NewReader(0)
	data := xlsxBytes(t, [][]interface{}{
		{"Primer nombre", "Segundo nombre", "Apellido paterno", "Apellido materno"},
		{"Ana", "Maria", "Gomez", "Torres"},
		{"Luis", "", "Quispe", "Rojas"},
	})

	rows, err := rd.Read("lista.xlsx", int64(len(data)), bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"Primer nombre", "Segundo nombre", "Apellido paterno", "Apellido materno"},
		{"Ana", "Maria", "Gomez", "Torres"},
		{"Luis", "", "Quispe", "Rojas"},
	}, rowStrings(rows))

	res := roster.Normalize(rows)
	assert.Equal(t, []roster.Record{
		{GivenNames: "Ana Maria", Surnames: "Gomez Torres", OriginalOrder: 1},
		{GivenNames: "Luis", Surnames: "Quispe Rojas", OriginalOrder: 2},
	}, res.Records)
}

func TestReader_Read_errors(t *testing.T) {
	rd := NewReader(64)

	t.Run("unreadable xlsx", func(t *testing.T) {
		data := []byte("\x00\x01\x02 definitely not a workbook")
		_, err := rd.Read("lista.xlsx", int64(len(data)), bytes.NewReader(data))
		assert.Equal(t, roster.ErrUnreadableFormat, errors.Cause(err))
	})

	t.Run("unreadable xls", func(t *testing.T) {
		data := []byte("Nombres,Apellidos\nMaria,Garcia\n")
		_, err := rd.Read("lista.xls", int64(len(data)), bytes.NewReader(data))
		assert.Equal(t, roster.ErrUnreadableFormat, errors.Cause(err))
	})

	t.Run("under-declared size", func(t *testing.T) {
		data := strings.Repeat("Maria,Garcia\n", 10)
		_, err := rd.Read("lista.csv", 10, strings.NewReader(data))
		var vErr *core.ValidationError
		require.True(t, errors.As(err, &vErr))
		assert.Equal(t, ErrFileTooLarge, vErr.Err)
	})

	t.Run("empty file", func(t *testing.T) {
		_, err := rd.Read("lista.csv", 0, strings.NewReader("  \n"))
		var vErr *core.ValidationError
		require.True(t, errors.As(err, &vErr))
		assert.Equal(t, ErrEmptyFile, vErr.Err)
	})
}

func TestSniffDelimiter(t *testing.T) {
	assert.Equal(t, ',', sniffDelimiter([]byte("a,b\n1;2")))
	assert.Equal(t, ';', sniffDelimiter([]byte("a;b;c\n")))
	assert.Equal(t, '\t', sniffDelimiter([]byte("a\tb")))
	assert.Equal(t, ',', sniffDelimiter([]byte("single column")))
}
