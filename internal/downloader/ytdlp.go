package downloader

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"github.com/lrstanley/go-ytdlp"

	"ytdl-api/internal/models"
)

const progressInterval = 500 * time.Millisecond

// YtDlp runs the yt-dlp binary through go-ytdlp. The process is started with
// the caller's context, so a deadline kills it.
type YtDlp struct {
	executable string
}

// NewYtDlp uses executable when set, otherwise yt-dlp from PATH.
func NewYtDlp(executable string) *YtDlp {
	return &YtDlp{executable: executable}
}

func (y *YtDlp) command(opts Options) *ytdlp.Command {
	cmd := ytdlp.New().NoWarnings().NoPlaylist()
	if y.executable != "" {
		cmd = cmd.SetExecutable(y.executable)
	}
	if opts.Timeout > 0 {
		cmd = cmd.SocketTimeout(opts.Timeout.Seconds())
	}
	if opts.UserAgent != "" {
		cmd = cmd.AddHeaders("User-Agent:" + opts.UserAgent)
	}
	if opts.GeoBypass {
		cmd = cmd.GeoBypass()
	}
	if opts.SkipUnavailableFragments {
		cmd = cmd.SkipUnavailableFragments()
	}
	if opts.Retries > 0 {
		retries := strconv.Itoa(opts.Retries)
		cmd = cmd.Retries(retries).FragmentRetries(retries)
	}
	if opts.FlatExtraction {
		cmd = cmd.FlatPlaylist()
	}
	return cmd
}

func (y *YtDlp) Info(ctx context.Context, url string, opts Options) (*models.RawInfo, error) {
	cmd := y.command(opts).DumpSingleJSON().SkipDownload()
	if opts.Quiet {
		cmd = cmd.Quiet()
	}

	res, err := cmd.Run(ctx, url)
	if err != nil {
		return nil, classify(ctx, "extraction", stderrOf(res), err)
	}

	var info models.RawInfo
	if err := json.Unmarshal([]byte(res.Stdout), &info); err != nil {
		return nil, classify(ctx, "extraction", "unreadable extractor output", fmt.Errorf("decode info: %w", err))
	}
	return &info, nil
}

func (y *YtDlp) Download(ctx context.Context, req Request, progress Progress) (string, error) {
	progress = progressOrNoop(progress)

	name := "%(title)s"
	if req.Filename != "" {
		name = req.Filename
	}

	cmd := y.command(req.Options).
		ForceOverwrites().
		Format(req.Selector.Format).
		Output(filepath.Join(req.OutputDir, name+".%(ext)s"))
	if req.Selector.MergeFormat != "" {
		cmd = cmd.MergeOutputFormat(req.Selector.MergeFormat)
	}
	if req.Selector.ExtractAudio {
		cmd = cmd.ExtractAudio().AudioFormat(req.Selector.AudioCodec)
		if req.Selector.AudioQuality != "" {
			cmd = cmd.AudioQuality(req.Selector.AudioQuality)
		}
	}

	cmd = cmd.ProgressFunc(progressInterval, func(update ytdlp.ProgressUpdate) {
		if update.TotalBytes > 0 {
			progress.Update(int64(update.DownloadedBytes), int64(update.TotalBytes))
		}
	})

	res, err := cmd.Run(ctx, req.URL)
	if err != nil {
		return "", classify(ctx, "download", stderrOf(res), err)
	}

	path, err := locateOutput(req.OutputDir)
	if err != nil {
		return "", classify(ctx, "download", "", err)
	}
	progress.Finished(path)
	return path, nil
}

func stderrOf(res *ytdlp.Result) string {
	if res == nil {
		return ""
	}
	return lastError(res.Stderr)
}
