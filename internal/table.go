package internal

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/sensiblebit/certpack"
)

// RenderChainTable renders the ordered chain followed by the unlinked
// certificates as a table.
func RenderChainTable(result *certpack.ChainResult) (string, error) {
	var buf bytes.Buffer
	table := tablewriter.NewTable(&buf)
	table.Header([]string{"#", "Role", "Subject", "Issuer", "Key", "Input"})

	var rows [][]string
	for i, rec := range result.Ordered {
		rows = append(rows, chainRow(i+1, chainRole(i, rec), rec))
	}
	for i, rec := range result.Unlinked {
		rows = append(rows, chainRow(len(result.Ordered)+i+1, "unlinked", rec))
	}
	if err := table.Bulk(rows); err != nil {
		return "", fmt.Errorf("building chain table: %w", err)
	}
	if err := table.Render(); err != nil {
		return "", fmt.Errorf("rendering chain table: %w", err)
	}
	return buf.String(), nil
}

func chainRole(i int, rec *certpack.CertificateRecord) string {
	switch {
	case i == 0:
		return "leaf"
	case rec.SelfIssued():
		return "root"
	default:
		return "intermediate"
	}
}

func chainRow(n int, role string, rec *certpack.CertificateRecord) []string {
	return []string{
		strconv.Itoa(n),
		role,
		rec.SubjectDN,
		rec.IssuerDN,
		certpack.KeyDescription(rec.Cert),
		"#" + strconv.Itoa(rec.Segment),
	}
}
