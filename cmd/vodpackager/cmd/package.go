package cmd

import (
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/jmylchreest/vodpackager/internal/config"
	"github.com/jmylchreest/vodpackager/internal/vod/cenc"
	"github.com/jmylchreest/vodpackager/internal/vod/frameio"
	"github.com/jmylchreest/vodpackager/internal/vod/hds"
	"github.com/jmylchreest/vodpackager/internal/vod/model"
	"github.com/jmylchreest/vodpackager/internal/vod/parser"
	"github.com/spf13/cobra"
)

var (
	packageInput        string
	packageOutputDir    string
	packageStartMS      int64
	packageEndMS        int64
	packageSegmentIndex uint32
	packageEncryptKey   string
	packageEncryptIV    string
	packageEncryptKID   string
	packageEncryptPSSH  string
)

// packageCmd drives the packager core end to end against a single source
// file: parse the moov box, build one HDS fragment covering the requested
// clip window, optionally CENC-encrypt every track, and write the fragment,
// its abst bootstrap box, and (when encrypting) a saiz/saio/auxiliary-data
// sidecar per track to --output.
var packageCmd = &cobra.Command{
	Use:   "package",
	Short: "Package an MP4 asset into one HDS fragment",
	Long: `package reads a single ISO Base Media File Format asset, parses its
moov box into a frame table, and emits one HDS F4F fragment plus an abst
bootstrap box covering the requested clip window.

It wires together the packager core's pieces exactly as a production host
would: internal/vod/parser decodes the frame table, internal/vod/frameio
supplies frame bytes through the read-cache contract, internal/vod/hds
computes fragment sizing and writes the Adobe-tag-framed body, and (when
--encrypt-key is set) internal/vod/cenc encrypts every sample and
produces the saiz/saio/auxiliary-data sidecar a full fMP4 CENC moof would
carry inline. This CLI keeps that sidecar as a standalone file rather than
re-assembling it into the HDS moof: stitching encrypted traf boxes back into
the fragment header is the caller-provided write_fragment_header callback
spec §4.3 describes, which belongs to the manifest/packaging frontend this
repository does not implement (spec §1 Non-goals).`,
	RunE: runPackage,
}

func init() {
	packageCmd.Flags().StringVar(&packageInput, "input", "", "path to the source MP4 file (required)")
	packageCmd.Flags().StringVar(&packageOutputDir, "output", ".", "directory to write the fragment and bootstrap into")
	packageCmd.Flags().Int64Var(&packageStartMS, "start-ms", 0, "clip window start, in milliseconds")
	packageCmd.Flags().Int64Var(&packageEndMS, "end-ms", 0, "clip window end, in milliseconds (0 = end of track)")
	packageCmd.Flags().Uint32Var(&packageSegmentIndex, "segment-index", 1, "HDS fragment/segment index")
	packageCmd.Flags().StringVar(&packageEncryptKey, "encrypt-key", "", "16-byte hex AES-CTR key; enables CENC encryption when set")
	packageCmd.Flags().StringVar(&packageEncryptIV, "encrypt-iv", "", "16-byte hex base IV (required with --encrypt-key)")
	packageCmd.Flags().StringVar(&packageEncryptKID, "encrypt-kid", "", "key ID as a UUID, e.g. 01234567-89ab-cdef-0123-456789abcdef (required with --encrypt-key)")
	packageCmd.Flags().StringVar(&packageEncryptPSSH, "encrypt-pssh", "", "hex-encoded PSSH box payload")
	_ = packageCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(packageCmd)
}

func runPackage(_ *cobra.Command, _ []string) error {
	logger := slog.Default()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	data, err := os.ReadFile(packageInput)
	if err != nil {
		return fmt.Errorf("reading %s: %w", packageInput, err)
	}

	mediaSet, err := parser.Parse(data, parser.Options{StartMS: packageStartMS, EndMS: packageEndMS, Logger: logger})
	if err != nil {
		return fmt.Errorf("parsing moov: %w", err)
	}
	clip := mediaSet.Sequences[0].Clips[0]
	tracks := clip.Tracks
	logger.Info("parsed media set", slog.Int("track_count", len(tracks)))

	cache := frameio.NewReadCache(logger)
	cache.Append(0, data)
	cache.Close()

	var encParams *model.EncryptionParams
	if packageEncryptKey != "" {
		encParams, err = parseEncryptionParams(packageEncryptKey, packageEncryptIV, packageEncryptKID, packageEncryptPSSH)
		if err != nil {
			return err
		}
	}

	frameBytes := make(map[*model.Track][][]byte, len(tracks))
	for _, tr := range tracks {
		bufs := make([][]byte, len(tr.Frames))
		for i, f := range tr.Frames {
			b, err := cache.Fetch(f.Offset, int(f.Size))
			if err != nil {
				return fmt.Errorf("reading frame %d of %s track: %w", i, tr.MediaType, err)
			}
			bufs[i] = b
		}
		frameBytes[tr] = bufs
	}

	cencStates := make(map[*model.Track]*model.CencState, len(tracks))
	if encParams != nil {
		for _, tr := range tracks {
			bufs := frameBytes[tr]
			ciphertext, state, err := cenc.EncryptTrack(tr, *encParams, clip.SequenceOffset, func(i int) ([]byte, error) {
				return bufs[i], nil
			}, logger)
			if err != nil {
				return fmt.Errorf("encrypting %s track: %w", tr.MediaType, err)
			}
			frameBytes[tr] = ciphertext
			cencStates[tr] = state
		}
		logger.Info("encrypted tracks", slog.Int("track_count", len(tracks)))
	}

	frag, err := hds.BuildFragment(tracks, packageSegmentIndex, logger)
	if err != nil {
		return fmt.Errorf("building fragment header: %w", err)
	}

	writer := frameio.NewBufferWriter(frag.TotalSize, logger)
	if _, err := writer.Write(frag.Header); err != nil {
		return fmt.Errorf("writing fragment header: %w", err)
	}
	cursor := &frameio.FrameCursor{}
	fetch := func(ref hds.FrameRef) ([]byte, error) {
		return frameBytes[ref.Track][ref.Index], nil
	}
	if err := hds.WriteBody(frag, cursor, fetch, writer); err != nil {
		return fmt.Errorf("writing fragment body: %w", err)
	}
	if err := writer.CheckOffset(int64(frag.TotalSize)); err != nil {
		return fmt.Errorf("fragment size accounting: %w", err)
	}

	if err := os.MkdirAll(packageOutputDir, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	fragPath := filepath.Join(packageOutputDir, fmt.Sprintf("%s%d", cfg.Packager.FragmentFileNamePrefix, packageSegmentIndex))
	if err := os.WriteFile(fragPath, writer.Bytes(), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", fragPath, err)
	}
	logger.Info("wrote fragment", slog.String("path", fragPath), slog.Int("size", len(writer.Bytes())))

	bootstrapPath := filepath.Join(packageOutputDir, cfg.Packager.BootstrapFileNamePrefix)
	if err := os.WriteFile(bootstrapPath, buildBootstrap(clip, packageSegmentIndex), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", bootstrapPath, err)
	}
	logger.Info("wrote bootstrap", slog.String("path", bootstrapPath))

	if encParams != nil {
		for _, tr := range tracks {
			sidecarPath := filepath.Join(packageOutputDir, fmt.Sprintf("%s%d.%s.cenc", cfg.Packager.FragmentFileNamePrefix, packageSegmentIndex, tr.MediaType))
			if err := os.WriteFile(sidecarPath, buildCencSidecar(cencStates[tr]), 0o644); err != nil {
				return fmt.Errorf("writing %s: %w", sidecarPath, err)
			}
			logger.Info("wrote CENC sidecar", slog.String("path", sidecarPath), slog.String("track", tr.MediaType.String()))
		}
	}

	return nil
}

// buildBootstrap assembles the clip's abst box: a single segment covering
// the one fragment this command just wrote, with the presentation-end
// sentinel set (this CLI only ever packages a complete VOD clip in one
// shot, never a live rollover).
func buildBootstrap(clip *model.Clip, segmentIndex uint32) []byte {
	longest := clip.LongestTrack(model.Video)
	if longest == nil {
		longest = clip.LongestTrack(model.Audio)
	}
	var duration uint64
	if longest != nil && longest.Timescale != 0 && len(longest.Frames) > 0 {
		last := longest.Frames[len(longest.Frames)-1]
		totalTicks := uint64(last.DTS) + uint64(last.Duration)
		duration = hds.RescaleTime(totalTicks, model.NormalizedTimescale, model.HDSTimescale)
	}
	return hds.BuildAbst(hds.BootstrapInfo{
		FragmentCount: 1,
		Runs: []hds.FragmentRun{{
			FirstFragment:    segmentIndex,
			FirstFragmentPTS: 0,
			FragmentDuration: uint32(duration),
		}},
		PresentationEnd: true,
	})
}

// buildCencSidecar concatenates the saiz box, the saio box (pointing at the
// byte immediately following it, since saio's body is a fixed size
// regardless of the offset value it carries) and the raw auxiliary-data
// block for one track's CencState, in the order a full fMP4 traf would
// carry them.
func buildCencSidecar(state *model.CencState) []byte {
	saiz := cenc.BuildSaiz(state.Entries)
	saioPlaceholder := cenc.BuildSaio(0)
	saio := cenc.BuildSaio(uint32(len(saiz) + len(saioPlaceholder)))
	aux := cenc.BuildAuxiliaryData(state.Entries)

	out := make([]byte, 0, len(saiz)+len(saio)+len(aux))
	out = append(out, saiz...)
	out = append(out, saio...)
	out = append(out, aux...)
	return out
}

func parseEncryptionParams(keyHex, ivHex, kid, psshHex string) (*model.EncryptionParams, error) {
	if ivHex == "" || kid == "" {
		return nil, fmt.Errorf("--encrypt-iv and --encrypt-kid are required with --encrypt-key")
	}
	var p model.EncryptionParams
	if err := decodeFixed(keyHex, p.Key[:]); err != nil {
		return nil, fmt.Errorf("decoding --encrypt-key: %w", err)
	}
	if err := decodeFixed(ivHex, p.IV[:]); err != nil {
		return nil, fmt.Errorf("decoding --encrypt-iv: %w", err)
	}
	parsedKID, err := uuid.Parse(kid)
	if err != nil {
		return nil, fmt.Errorf("decoding --encrypt-kid: %w", err)
	}
	p.KID = parsedKID
	if psshHex != "" {
		pssh, err := hex.DecodeString(psshHex)
		if err != nil {
			return nil, fmt.Errorf("decoding --encrypt-pssh: %w", err)
		}
		p.PSSH = pssh
	}
	return &p, nil
}

func decodeFixed(s string, out []byte) error {
	b, err := hex.DecodeString(s)
	if err != nil {
		return err
	}
	if len(b) != len(out) {
		return fmt.Errorf("expected %d bytes, got %d", len(out), len(b))
	}
	copy(out, b)
	return nil
}
