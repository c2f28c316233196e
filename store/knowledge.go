package store

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"time"
)

type KnowledgeChunk struct {
	ID        int64
	Source    string
	Seq       int
	Text      string
	Embedding []float32
}

// ReplaceKnowledge swaps every chunk of source for chunks in one transaction.
func (s *Store) ReplaceKnowledge(ctx context.Context, source string, chunks []KnowledgeChunk) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	if _, err = tx.ExecContext(ctx, `DELETE FROM knowledge_chunks WHERE source=?`, source); err != nil {
		return err
	}
	now := time.Now().UTC()
	for _, c := range chunks {
		if _, err = tx.ExecContext(ctx, `INSERT INTO knowledge_chunks(source, seq, text, embedding, created_at) VALUES(?,?,?,?,?)`,
			source, c.Seq, c.Text, encodeVector(c.Embedding), now); err != nil {
			return fmt.Errorf("chunk %d: %w", c.Seq, err)
		}
	}
	return tx.Commit()
}

func (s *Store) KnowledgeChunks(ctx context.Context) ([]KnowledgeChunk, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, source, seq, text, embedding FROM knowledge_chunks ORDER BY source, seq`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []KnowledgeChunk
	for rows.Next() {
		var (
			c   KnowledgeChunk
			raw []byte
		)
		if err := rows.Scan(&c.ID, &c.Source, &c.Seq, &c.Text, &raw); err != nil {
			return nil, err
		}
		c.Embedding = decodeVector(raw)
		out = append(out, c)
	}
	return out, rows.Err()
}

// vectors are stored as little-endian float32
func encodeVector(v []float32) []byte {
	b := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(b[4*i:], math.Float32bits(f))
	}
	return b
}

func decodeVector(b []byte) []float32 {
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return v
}
