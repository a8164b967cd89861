// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// DefaultChatTitle is the title given to new chats until the first
// research request renames them.
const DefaultChatTitle = "New Research"

// Chat is a conversation thread holding research messages and uploaded
// documents.
type Chat struct {
	ID        int64     `json:"id" yaml:"id"`
	Title     string    `json:"title" yaml:"title"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`
}

// Message is one completed research exchange in a chat.
type Message struct {
	ID        int64     `json:"id" yaml:"id"`
	ChatID    int64     `json:"chat_id" yaml:"chat_id"`
	Query     string    `json:"query" yaml:"query"`
	Report    string    `json:"report" yaml:"report"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

// Document is an uploaded file with its extracted text and analysis.
type Document struct {
	ID                  int64     `json:"id" yaml:"id"`
	ChatID              int64     `json:"chat_id" yaml:"chat_id"`
	Filename            string    `json:"filename" yaml:"filename"`
	FilePath            string    `json:"file_path,omitempty" yaml:"file_path,omitempty"`
	FileType            string    `json:"file_type" yaml:"file_type"`
	FileSize            int64     `json:"file_size" yaml:"file_size"`
	ExtractedText       string    `json:"extracted_text,omitempty" yaml:"extracted_text,omitempty"`
	Summary             string    `json:"summary" yaml:"summary"`
	GenuinenessScore    int       `json:"genuineness_score" yaml:"genuineness_score"`
	GenuinenessAnalysis string    `json:"genuineness_analysis,omitempty" yaml:"genuineness_analysis,omitempty"`
	WordCount           int       `json:"word_count" yaml:"word_count"`
	UploadedAt          time.Time `json:"uploaded_at" yaml:"uploaded_at"`
}
