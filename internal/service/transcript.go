package service

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"cardnews/internal/model"
)

const (
	transcriptHeader = "===== IT Card News ====="
	untitled         = "(untitled)"
	tagSeparator     = ", "
)

// WriteTranscript 写出纯文本版本, 每页一个 [type] 段落
func WriteTranscript(w io.Writer, deck model.Deck) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, transcriptHeader)

	for _, s := range deck.Slides {
		fmt.Fprintln(bw)
		fmt.Fprintf(bw, "[%s]\n", s.Type)

		title := oneLine(s.Title)
		if title == "" {
			title = untitled
		}
		writeField(bw, "title", title)
		writeField(bw, "subtitle", s.Subtitle)
		writeField(bw, "content", s.Content)
		writeField(bw, "tags", joinTags(s.Tags))
		writeField(bw, "source", s.SourceURL)
		writeField(bw, "image", s.ImagePrompt)
	}

	return bw.Flush()
}

func writeField(w io.Writer, key, value string) {
	if value = oneLine(value); value != "" {
		fmt.Fprintf(w, "%s: %s\n", key, value)
	}
}

// joinTags 标签内的逗号会与分隔符混淆, 写出前去掉
func joinTags(tags []string) string {
	cleaned := make([]string, 0, len(tags))
	for _, t := range tags {
		if t = oneLine(strings.ReplaceAll(t, ",", " ")); t != "" {
			cleaned = append(cleaned, t)
		}
	}
	return strings.Join(cleaned, tagSeparator)
}

// oneLine 把换行合并为空格
func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// ParseTranscript 从纯文本版本恢复幻灯片, 段落标记必须在空行之后
func ParseTranscript(r io.Reader) (model.Deck, error) {
	var (
		deck      model.Deck
		current   *model.Slide
		prevBlank bool
	)

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")

		if strings.TrimSpace(line) == "" {
			prevBlank = true
			continue
		}

		if prevBlank {
			if t, ok := sectionMarker(line); ok {
				deck.Slides = append(deck.Slides, model.Slide{Type: t})
				current = &deck.Slides[len(deck.Slides)-1]
				prevBlank = false
				continue
			}
		}
		prevBlank = false

		if current == nil {
			continue
		}
		key, value, found := strings.Cut(line, ": ")
		if !found {
			continue
		}
		switch key {
		case "title":
			current.Title = value
		case "subtitle":
			current.Subtitle = value
		case "content":
			current.Content = value
		case "tags":
			current.Tags = strings.Split(value, tagSeparator)
		case "source":
			current.SourceURL = value
		case "image":
			current.ImagePrompt = value
		}
	}
	if err := sc.Err(); err != nil {
		return model.Deck{}, fmt.Errorf("read transcript: %w", err)
	}

	if len(deck.Slides) == 0 {
		return model.Deck{}, errors.New("transcript has no slides")
	}
	return deck, nil
}

func sectionMarker(line string) (model.SlideType, bool) {
	switch line {
	case "[cover]":
		return model.SlideCover, true
	case "[news]":
		return model.SlideNews, true
	case "[summary]":
		return model.SlideSummary, true
	}
	return "", false
}
