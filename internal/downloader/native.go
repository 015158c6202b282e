package downloader

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/kkdai/youtube/v2"

	"ytdl-api/internal/models"
)

// Native talks to YouTube directly through kkdai/youtube and only shells out
// to ffmpeg for muxing and mp3 conversion.
type Native struct {
	client youtube.Client
	ffmpeg string
}

func NewNative(httpClient *http.Client) *Native {
	return &Native{
		client: youtube.Client{HTTPClient: httpClient},
		ffmpeg: "ffmpeg",
	}
}

func (n *Native) Info(ctx context.Context, url string, _ Options) (*models.RawInfo, error) {
	video, err := n.client.GetVideoContext(ctx, url)
	if err != nil {
		return nil, classify(ctx, "extraction", "", err)
	}
	return rawInfo(video), nil
}

// DOWNLOAD AND MUX
func (n *Native) Download(ctx context.Context, req Request, progress Progress) (string, error) {
	progress = progressOrNoop(progress)

	video, err := n.client.GetVideoContext(ctx, req.URL)
	if err != nil {
		return "", classify(ctx, "download", "", err)
	}

	videoFormat, audioFormat, err := pickFormats(video.Formats, req.Selector.Format)
	if err != nil {
		return "", classify(ctx, "download", err.Error(), err)
	}

	name := req.Filename
	if name == "" {
		name = SanitizeFilename(video.Title)
	}
	if name == "" {
		name = video.ID
	}

	var totalSize int64
	for _, f := range []*youtube.Format{videoFormat, audioFormat} {
		if f != nil {
			totalSize += f.ContentLength
		}
	}
	var currentBytes int64
	var mu sync.Mutex
	track := func(written int) {
		mu.Lock()
		defer mu.Unlock()
		currentBytes += int64(written)
		if totalSize > 0 {
			progress.Update(min(currentBytes, totalSize), totalSize)
		}
	}

	var out string
	switch {
	case videoFormat != nil && audioFormat != nil:
		out, err = n.downloadMuxed(ctx, video, videoFormat, audioFormat, req, name, track)
	case videoFormat != nil:
		out = filepath.Join(req.OutputDir, name+"."+extOf(videoFormat.MimeType))
		err = n.downloadStream(ctx, video, videoFormat, out, track)
	default:
		out = filepath.Join(req.OutputDir, name+"."+extOf(audioFormat.MimeType))
		err = n.downloadStream(ctx, video, audioFormat, out, track)
	}
	if err != nil {
		return "", classify(ctx, "download", "", err)
	}

	if req.Selector.ExtractAudio {
		if out, err = n.toAudio(ctx, out, req.Selector); err != nil {
			return "", classify(ctx, "download", "", err)
		}
	}

	// 0 byte check
	if info, err := os.Stat(out); err != nil || info.Size() == 0 {
		return "", classify(ctx, "download", "generated file is empty", fmt.Errorf("empty output %s", out))
	}

	progress.Finished(out)
	return out, nil
}

func (n *Native) downloadMuxed(ctx context.Context, video *youtube.Video, vf, af *youtube.Format, req Request, name string, track func(int)) (string, error) {
	videoTemp := filepath.Join(req.OutputDir, ".video."+extOf(vf.MimeType))
	audioTemp := filepath.Join(req.OutputDir, ".audio."+extOf(af.MimeType))
	defer os.Remove(videoTemp)
	defer os.Remove(audioTemp)

	var wg sync.WaitGroup
	wg.Add(2)
	var errV, errA error
	go func() {
		defer wg.Done()
		errV = n.downloadStream(ctx, video, vf, videoTemp, track)
	}()
	go func() {
		defer wg.Done()
		errA = n.downloadStream(ctx, video, af, audioTemp, track)
	}()
	wg.Wait()

	if errV != nil {
		return "", errV
	}
	if errA != nil {
		return "", errA
	}

	ext := req.Selector.MergeFormat
	if ext == "" {
		ext = "mp4"
	}
	out := filepath.Join(req.OutputDir, name+"."+ext)
	cmd := exec.CommandContext(ctx, n.ffmpeg, "-y", "-hide_banner", "-loglevel", "error",
		"-i", videoTemp, "-i", audioTemp, "-c", "copy", out)
	if output, err := cmd.CombinedOutput(); err != nil {
		return "", fmt.Errorf("ffmpeg: %s: %w", strings.TrimSpace(string(output)), err)
	}
	return out, nil
}

func (n *Native) toAudio(ctx context.Context, in string, sel Selector) (string, error) {
	codec := sel.AudioCodec
	if codec == "" {
		codec = "mp3"
	}
	out := strings.TrimSuffix(in, filepath.Ext(in)) + "." + codec
	if out == in {
		return in, nil
	}
	bitrate := "192k"
	if sel.AudioQuality != "" {
		bitrate = sel.AudioQuality + "k"
	}

	cmd := exec.CommandContext(ctx, n.ffmpeg, "-y", "-hide_banner", "-loglevel", "error",
		"-i", in, "-vn", "-f", codec, "-ab", bitrate, out)
	if output, err := cmd.CombinedOutput(); err != nil {
		return "", fmt.Errorf("ffmpeg: %s: %w", strings.TrimSpace(string(output)), err)
	}
	os.Remove(in)
	return out, nil
}

func (n *Native) downloadStream(ctx context.Context, v *youtube.Video, f *youtube.Format, path string, cb func(int)) error {
	stream, _, err := n.client.GetStreamContext(ctx, v, f)
	if err != nil {
		return err
	}
	defer stream.Close()

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	buf := make([]byte, 32*1024)
	for {
		read, err := stream.Read(buf)
		if read > 0 {
			if _, werr := file.Write(buf[:read]); werr != nil {
				return werr
			}
			cb(read)
		}
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
	}
}

// --- Helpers (Private) ---

// pickFormats resolves a yt-dlp style selector against the native format
// list. Exactly one of the returned formats may be nil.
func pickFormats(formats youtube.FormatList, selector string) (*youtube.Format, *youtube.Format, error) {
	if itag, err := strconv.Atoi(selector); err == nil {
		for i := range formats {
			if formats[i].ItagNo == itag {
				f := formats[i]
				if isAudio(&f) {
					return nil, &f, nil
				}
				return &f, nil, nil
			}
		}
		return nil, nil, fmt.Errorf("requested format %s is not available", selector)
	}

	var v, a *youtube.Format
	switch {
	case strings.HasPrefix(selector, "bestvideo+bestaudio"):
		v, a = findBestVideoFormat(formats, 0, false), findBestAudioFormat(formats)
		if v == nil || a == nil {
			v, a = findBestVideoFormat(formats, 0, true), nil
		}
	case strings.HasPrefix(selector, "bestaudio"):
		a = findBestAudioFormat(formats)
	case strings.HasPrefix(selector, "bestvideo"):
		v = findBestVideoFormat(formats, 0, false)
	case selector == "worst":
		v = findWorstMuxedFormat(formats)
	default:
		v = findBestVideoFormat(formats, 0, true)
	}
	if v == nil && a == nil {
		return nil, nil, fmt.Errorf("format not found")
	}
	return v, a, nil
}

func isAudio(f *youtube.Format) bool {
	return strings.HasPrefix(f.MimeType, "audio")
}

func isVideo(f *youtube.Format) bool {
	return strings.HasPrefix(f.MimeType, "video")
}

// findBestVideoFormat returns the format closest to targetHeight from below,
// or the highest one when targetHeight <= 0. muxed restricts the search to
// formats that also carry audio.
func findBestVideoFormat(formats youtube.FormatList, targetHeight int, muxed bool) *youtube.Format {
	var best *youtube.Format
	for i := range formats {
		f := formats[i]
		if !isVideo(&f) || (muxed && f.AudioChannels == 0) {
			continue
		}
		h := parseQuality(f.QualityLabel)
		if targetHeight > 0 && h == targetHeight {
			return &f
		}
		if targetHeight > 0 && h > targetHeight {
			continue
		}
		if best == nil || h > parseQuality(best.QualityLabel) {
			best = &f
		}
	}
	return best
}

func findWorstMuxedFormat(formats youtube.FormatList) *youtube.Format {
	var worst *youtube.Format
	for i := range formats {
		f := formats[i]
		if !isVideo(&f) || f.AudioChannels == 0 {
			continue
		}
		if worst == nil || parseQuality(f.QualityLabel) < parseQuality(worst.QualityLabel) {
			worst = &f
		}
	}
	return worst
}

func findBestAudioFormat(formats youtube.FormatList) *youtube.Format {
	var best *youtube.Format
	for i := range formats {
		f := formats[i]
		if !isAudio(&f) {
			continue
		}
		switch {
		case best == nil:
			best = &f
		case strings.Contains(f.MimeType, "mp4") && !strings.Contains(best.MimeType, "mp4"):
			best = &f
		case strings.Contains(f.MimeType, "mp4") == strings.Contains(best.MimeType, "mp4") && f.Bitrate > best.Bitrate:
			best = &f
		}
	}
	return best
}

func parseQuality(q string) int {
	if q == "4k" {
		return 2160
	}
	digits := ""
	for _, c := range q {
		if c >= '0' && c <= '9' {
			digits += string(c)
		} else if digits != "" {
			break
		}
	}
	if digits == "" {
		return 0
	}
	val, _ := strconv.Atoi(digits)
	return val
}

// extOf maps a MIME type like `video/mp4; codecs="avc1"` to an extension.
func extOf(mimeType string) string {
	base := strings.TrimSpace(strings.SplitN(mimeType, ";", 2)[0])
	switch base {
	case "audio/mp4":
		return "m4a"
	case "video/3gpp":
		return "3gp"
	}
	if i := strings.IndexByte(base, '/'); i >= 0 && i < len(base)-1 {
		return base[i+1:]
	}
	return "bin"
}

func codecsOf(mimeType string) []string {
	i := strings.Index(mimeType, "codecs=")
	if i < 0 {
		return nil
	}
	raw := strings.Trim(mimeType[i+len("codecs="):], `" `)
	var out []string
	for _, c := range strings.Split(raw, ",") {
		if c = strings.TrimSpace(c); c != "" {
			out = append(out, c)
		}
	}
	return out
}

func rawFormat(f youtube.Format) models.RawFormat {
	rf := models.RawFormat{
		FormatID:   strconv.Itoa(f.ItagNo),
		Ext:        extOf(f.MimeType),
		FormatNote: f.QualityLabel,
		VCodec:     "none",
		ACodec:     "none",
	}

	codecs := codecsOf(f.MimeType)
	codec := func(i int) string {
		if i < len(codecs) {
			return codecs[i]
		}
		return "unknown"
	}
	switch {
	case isAudio(&f):
		rf.ACodec = codec(0)
		rf.FormatNote = strings.ToLower(strings.TrimPrefix(f.AudioQuality, "AUDIO_QUALITY_"))
	case f.AudioChannels > 0:
		rf.VCodec, rf.ACodec = codec(0), codec(1)
	default:
		rf.VCodec = codec(0)
	}

	if f.Height > 0 {
		h := f.Height
		rf.Height = &h
	}
	if f.Width > 0 {
		w := f.Width
		rf.Width = &w
	}
	if f.FPS > 0 {
		fps := float64(f.FPS)
		rf.FPS = &fps
	}
	if f.ContentLength > 0 {
		size := float64(f.ContentLength)
		rf.FileSize = &size
	}
	if f.Bitrate > 0 {
		tbr := float64(f.Bitrate) / 1000
		rf.TBR = &tbr
	}
	return rf
}

func rawInfo(v *youtube.Video) *models.RawInfo {
	views := int64(v.Views)
	info := &models.RawInfo{
		ID:          v.ID,
		Title:       v.Title,
		Uploader:    v.Author,
		Duration:    v.Duration.Seconds(),
		ViewCount:   &views,
		Description: v.Description,
		Formats:     make([]models.RawFormat, 0, len(v.Formats)),
	}
	if v.ChannelID != "" {
		info.UploaderURL = "https://www.youtube.com/channel/" + v.ChannelID
	}
	if !v.PublishDate.IsZero() {
		info.UploadDate = v.PublishDate.Format("20060102")
	}
	if len(v.Thumbnails) > 0 {
		info.Thumbnail = v.Thumbnails[len(v.Thumbnails)-1].URL
	}
	for _, f := range v.Formats {
		info.Formats = append(info.Formats, rawFormat(f))
	}
	return info
}
