package ast

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"

	"golang.org/x/text/unicode/norm"
)

// DomainExpression is the domain prefix for expression hashes.
// The version suffix allows a future change of encoding.
const DomainExpression = "jitexpr/expression/v1"

// Hash computes a content address for n.
// Format: SHA256(domain + 0x00 + canonical(n)).
//
// Unary and Binary hash identically to the Operation they were narrowed
// from, so a tree keeps its identity across compilation.
func Hash(n Node) (string, error) {
	data, err := MarshalCanonical(n)
	if err != nil {
		return "", fmt.Errorf("hash expression: %w", err)
	}
	h := sha256.New()
	h.Write([]byte(DomainExpression))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil)), nil
}

// MarshalCanonical encodes n in the same shape documents use:
// literals as integers, operations as [token, operand...].
// Tokens are NFC-normalized and HTML escaping is disabled.
func MarshalCanonical(n Node) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeCanonical(&buf, n); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeCanonical(buf *bytes.Buffer, n Node) error {
	switch n := n.(type) {
	case IntLiteral:
		buf.WriteString(strconv.FormatInt(int64(n.Value), 10))
		return nil
	case Operation:
		return writeCanonicalOp(buf, n.Token, n.Operands)
	case Unary:
		return writeCanonicalOp(buf, n.Token, []Node{n.Operand})
	case Binary:
		return writeCanonicalOp(buf, n.Token, []Node{n.Left, n.Right})
	default:
		return fmt.Errorf("unsupported node type: %T", n)
	}
}

func writeCanonicalOp(buf *bytes.Buffer, token string, operands []Node) error {
	buf.WriteByte('[')
	tok, err := canonicalString(token)
	if err != nil {
		return err
	}
	buf.Write(tok)
	for i, operand := range operands {
		buf.WriteByte(',')
		if err := writeCanonical(buf, operand); err != nil {
			return fmt.Errorf("[%d]: %w", i+1, err)
		}
	}
	buf.WriteByte(']')
	return nil
}

func canonicalString(s string) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(norm.NFC.String(s)); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte{'\n'}), nil
}
