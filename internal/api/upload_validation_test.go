package api

import "testing"

func TestAttachmentContentType(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		filename string
		body     []byte
		wantType string
		wantOK   bool
	}{
		{
			name:     "plain text",
			body:     []byte("expense report\nhotel: 420.00\nflights: 310.50\n"),
			wantType: "text/plain",
			wantOK:   true,
		},
		{
			name:     "csv by extension",
			filename: "expenses.CSV",
			body:     []byte("item,amount\nhotel,420.00\nflights,310.50\n"),
			wantType: "text/csv",
			wantOK:   true,
		},
		{
			name:     "csv content under txt name",
			filename: "expenses.txt",
			body:     []byte("item,amount\nhotel,420.00\n"),
			wantType: "text/plain",
			wantOK:   true,
		},
		{
			name:     "csv name on binary",
			filename: "expenses.csv",
			body:     []byte{0x00, 0x01, 0x02, 0x03, 0xff},
			wantOK:   false,
		},
		{
			name:     "pdf header",
			body:     []byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\n%%EOF\n"),
			wantType: "application/pdf",
			wantOK:   true,
		},
		{
			name: "png header",
			body: []byte{
				0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a,
				0x00, 0x00, 0x00, 0x0d, 0x49, 0x48, 0x44, 0x52,
				0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
			},
			wantType: "image/png",
			wantOK:   true,
		},
		{
			name:   "empty",
			body:   []byte(""),
			wantOK: false,
		},
		{
			name:   "whitespace only",
			body:   []byte(" \n\t "),
			wantOK: false,
		},
		{
			name:   "binary blob",
			body:   []byte{0x00, 0x01, 0x02, 0x03, 0xff},
			wantOK: false,
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, ok := attachmentContentType(tc.filename, tc.body)
			if ok != tc.wantOK {
				t.Fatalf("attachmentContentType() ok = %v, want %v", ok, tc.wantOK)
			}
			if got != tc.wantType {
				t.Fatalf("attachmentContentType() type = %q, want %q", got, tc.wantType)
			}
		})
	}
}
