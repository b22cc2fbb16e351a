package service

import (
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-pdf/fpdf"
	"go.uber.org/zap"

	"cardnews/config"
	"cardnews/internal/model"
)

// 10 x 7.5 英寸, 与4:3幻灯片一致
const (
	pageWidth  = 254.0
	pageHeight = 190.5
	pageMargin = 18.0

	fontFamily       = "body"
	coreFontFamily   = "Helvetica"
	maxContentRunes  = 600
	maxSubtitleRunes = 200
)

type rgb struct{ r, g, b int }

var slideColors = map[model.SlideType]struct{ background, title, text rgb }{
	model.SlideCover:   {rgb{24, 32, 56}, rgb{255, 255, 255}, rgb{200, 210, 230}},
	model.SlideNews:    {rgb{248, 249, 252}, rgb{24, 32, 56}, rgb{60, 64, 72}},
	model.SlideSummary: {rgb{235, 241, 255}, rgb{24, 32, 56}, rgb{60, 64, 72}},
}

// Renderer 把幻灯片写成PDF和纯文本
type Renderer struct {
	outputDir string
	cfg       config.RenderConfig
	logger    *zap.Logger
	now       func() time.Time
	seq       atomic.Uint64
}

func NewRenderer(outputDir string, cfg config.RenderConfig, logger *zap.Logger) *Renderer {
	return &Renderer{outputDir: outputDir, cfg: cfg, logger: logger.Named("renderer"), now: time.Now}
}

// baseName {Daily|Monthly}_IT_News_{yyyy-mm-dd}_{6hex}
func (r *Renderer) baseName(freq model.Frequency) string {
	now := r.now()
	seed := strconv.FormatInt(now.UnixNano(), 10) + "-" + strconv.FormatUint(r.seq.Add(1), 10)
	sum := md5.Sum([]byte(seed))
	return fmt.Sprintf("%s_IT_News_%s_%s", freq.Label(), now.Format("2006-01-02"), hex.EncodeToString(sum[:3]))
}

// Render 写出PDF, 同时写出同名 .txt; PDF失败时返回 .txt 路径
func (r *Renderer) Render(deck model.Deck, freq model.Frequency) Outcome[string] {
	if err := os.MkdirAll(r.outputDir, 0o755); err != nil {
		return degraded("", CauseRender, fmt.Errorf("create output dir: %w", err))
	}

	base := filepath.Join(r.outputDir, r.baseName(freq))
	txtPath := base + ".txt"
	pdfPath := base + ".pdf"

	txtErr := r.writeTranscriptFile(txtPath, deck)
	if txtErr != nil {
		r.logger.Error("failed to write transcript", zap.String("path", txtPath), zap.Error(txtErr))
	}

	pages, pdfErr := r.writePDF(pdfPath, deck)
	if pdfErr != nil {
		_ = os.Remove(pdfPath)
		r.logger.Error("failed to render pdf", zap.String("path", pdfPath), zap.Error(pdfErr))
		if txtErr != nil {
			return degraded("", CauseRender, errors.Join(pdfErr, txtErr))
		}
		return degraded(txtPath, CauseRender, pdfErr)
	}

	r.logger.Info("card news rendered", zap.String("path", pdfPath), zap.Int("pages", pages))
	return ok(pdfPath)
}

// ToPortableDocument 把非PDF产物转成PDF, 任何失败都返回原路径
func (r *Renderer) ToPortableDocument(path string) string {
	ext := filepath.Ext(path)
	if strings.EqualFold(ext, ".pdf") {
		return path
	}

	base := strings.TrimSuffix(path, ext)
	f, err := os.Open(base + ".txt")
	if err != nil {
		r.logger.Warn("no transcript to convert", zap.String("path", path), zap.Error(err))
		return path
	}
	defer f.Close()

	deck, err := ParseTranscript(f)
	if err != nil {
		r.logger.Warn("failed to parse transcript", zap.String("path", path), zap.Error(err))
		return path
	}

	pdfPath := base + ".pdf"
	if _, err := r.writePDF(pdfPath, deck); err != nil {
		_ = os.Remove(pdfPath)
		r.logger.Warn("pdf conversion failed", zap.String("path", path), zap.Error(err))
		return path
	}
	return pdfPath
}

// WritePlaceholder 最后的兜底: 一个说明文件
func (r *Renderer) WritePlaceholder(freq model.Frequency, reason error) (string, error) {
	if err := os.MkdirAll(r.outputDir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}

	path := filepath.Join(r.outputDir, r.baseName(freq)+".txt")
	body := fmt.Sprintf("%s\n\n[summary]\ntitle: Card news unavailable\ncontent: %s\n", transcriptHeader, oneLine(fmt.Sprint(reason)))
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		return "", fmt.Errorf("write placeholder: %w", err)
	}
	return path, nil
}

func (r *Renderer) writeTranscriptFile(path string, deck model.Deck) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteTranscript(f, deck); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// writePDF 每页一张幻灯片, 返回页数
func (r *Renderer) writePDF(path string, deck model.Deck) (int, error) {
	pdf := fpdf.NewCustom(&fpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "mm",
		Size:           fpdf.SizeType{Wd: pageWidth, Ht: pageHeight},
	})
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetMargins(pageMargin, pageMargin, pageMargin)
	pdf.SetCreator("cardnews", false)

	family, text := r.setupFonts(pdf)
	pdf.SetTitle(text("IT Card News"), false)

	for _, s := range deck.Slides {
		pdf.AddPage()
		r.drawBackground(pdf, s.Type)

		colors := slideColors[s.Type]
		switch s.Type {
		case model.SlideCover:
			pdf.SetTextColor(colors.title.r, colors.title.g, colors.title.b)
			pdf.SetFont(family, "B", 34)
			pdf.SetXY(pageMargin, pageHeight*0.36)
			pdf.MultiCell(pageWidth-2*pageMargin, 14, text(slideTitle(s)), "", "C", false)
			if s.Subtitle != "" {
				pdf.SetTextColor(colors.text.r, colors.text.g, colors.text.b)
				pdf.SetFont(family, "", 16)
				pdf.SetX(pageMargin)
				pdf.MultiCell(pageWidth-2*pageMargin, 9, text(truncateRunes(s.Subtitle, maxSubtitleRunes)), "", "C", false)
			}
		default:
			pdf.SetTextColor(colors.title.r, colors.title.g, colors.title.b)
			pdf.SetFont(family, "B", 24)
			pdf.SetXY(pageMargin, pageMargin+4)
			pdf.MultiCell(pageWidth-2*pageMargin, 11, text(slideTitle(s)), "", "L", false)

			pdf.Ln(6)
			pdf.SetTextColor(colors.text.r, colors.text.g, colors.text.b)
			pdf.SetFont(family, "", 15)
			if s.Content != "" {
				pdf.MultiCell(pageWidth-2*pageMargin, 8, text(truncateRunes(s.Content, maxContentRunes)), "", "L", false)
			}
			if len(s.Tags) > 0 {
				pdf.Ln(4)
				pdf.SetFont(family, "", 12)
				pdf.MultiCell(pageWidth-2*pageMargin, 7, text("#"+strings.Join(s.Tags, "  #")), "", "L", false)
			}
			if s.SourceURL != "" {
				pdf.SetFont(family, "", 9)
				pdf.SetXY(pageMargin, pageHeight-pageMargin-6)
				pdf.CellFormat(pageWidth-2*pageMargin, 6, text(s.SourceURL), "", 0, "L", false, 0, s.SourceURL)
			}
		}

		pdf.SetFont(family, "", 9)
		pdf.SetTextColor(140, 140, 150)
		pdf.SetXY(pageWidth-pageMargin-30, pageHeight-10)
		pdf.CellFormat(30, 6, fmt.Sprintf("%d / %d", pdf.PageNo(), len(deck.Slides)), "", 0, "R", false, 0, "")
	}

	if err := pdf.Error(); err != nil {
		return 0, err
	}
	pages := pdf.PageCount()
	if err := pdf.OutputFileAndClose(path); err != nil {
		return 0, err
	}
	return pages, nil
}

// setupFonts 有TTF时使用UTF-8字体, 否则退回内置字体并转码
func (r *Renderer) setupFonts(pdf *fpdf.Fpdf) (string, func(string) string) {
	if fileExists(r.cfg.FontPath) {
		pdf.AddUTF8Font(fontFamily, "", r.cfg.FontPath)
		bold := r.cfg.BoldFontPath
		if !fileExists(bold) {
			bold = r.cfg.FontPath
		}
		pdf.AddUTF8Font(fontFamily, "B", bold)
		if pdf.Err() {
			r.logger.Warn("failed to load fonts", zap.String("font", r.cfg.FontPath), zap.Error(pdf.Error()))
			pdf.ClearError()
		} else {
			return fontFamily, func(s string) string { return s }
		}
	}
	if r.cfg.FontPath != "" && !fileExists(r.cfg.FontPath) {
		r.logger.Warn("font file not found, non-Latin text will not render",
			zap.String("font", r.cfg.FontPath))
	}
	return coreFontFamily, pdf.UnicodeTranslatorFromDescriptor("")
}

func (r *Renderer) drawBackground(pdf *fpdf.Fpdf, t model.SlideType) {
	if img := r.backgroundFor(t); img != "" {
		pdf.ImageOptions(img, 0, 0, pageWidth, pageHeight, false, fpdf.ImageOptions{ReadDpi: true}, 0, "")
		return
	}
	c := slideColors[t].background
	pdf.SetFillColor(c.r, c.g, c.b)
	pdf.Rect(0, 0, pageWidth, pageHeight, "F")
}

func (r *Renderer) backgroundFor(t model.SlideType) string {
	if r.cfg.BackgroundDir == "" {
		return ""
	}
	for _, ext := range []string{".png", ".jpg", ".jpeg"} {
		p := filepath.Join(r.cfg.BackgroundDir, string(t)+ext)
		if fileExists(p) {
			return p
		}
	}
	return ""
}

func slideTitle(s model.Slide) string {
	if s.Title == "" {
		return untitled
	}
	return s.Title
}

func fileExists(p string) bool {
	if p == "" {
		return false
	}
	info, err := os.Stat(p)
	return err == nil && !info.IsDir()
}
