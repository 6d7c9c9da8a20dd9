// Package keyfinder searches the secp256k1 private key space for keys whose
// address digest (HASH160 of the public key) is in a target set.
//
// Candidate keys come from a sequential range (start, start+stride, ...) or
// an explicit key list. Keys are processed in batches of lanes on a compute
// device: every iteration digests all lane points, reports matches and
// advances each lane by batchSize·stride with a single batched inversion.
//
// # Quick Start
//
//	import "github.com/mahdiidarabi/keyfinder/pkg/keyfinder"
//
//	targets, warnings, err := keyfinder.LoadTargets("targets.txt")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	dev := keyfinder.NewCPUDevice(keyfinder.CPUOptions{})
//	defer dev.Close()
//
//	finder := keyfinder.NewKeyFinder(dev).WithSink(keyfinder.NewLineSink(os.Stdout))
//	finder.Warn(warnings...)
//
//	start, _ := keyfinder.ParseKey("0x1")
//	summary, err := finder.Run(ctx, keyfinder.SequentialRange{
//	    Start:  start,
//	    Stride: keyfinder.ScalarFromUint64(1),
//	}, targets)
//
// # Decoding
//
// A match in lane i of iteration t of a sequential search decodes to
// start + (t·batchSize + i)·stride. Explicit lists are split into pages of
// batchSize keys and a match in lane i decodes to the i-th key of its page.
// Every decoded key is re-derived independently before it is reported; see
// Result.Verified.
package keyfinder
