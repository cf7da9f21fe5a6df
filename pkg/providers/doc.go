// Package providers contains one adapter per upstream authority consulted by
// the analysis pipeline: RxNorm (identifier lookup and the curated
// interaction graph), a supplement interaction service, FDA drug labels,
// FAERS adverse-event reports, a CMS exposure dataset, and an LLM-backed
// literature assessor.
//
// Every adapter follows the same contract: a typed result on success, a nil
// result with a nil error for the normalized "looked, found nothing" case,
// and a typed error otherwise. Adapter failures never propagate past the
// orchestrator; they degrade the affected evidence to absent and surface
// only in the debug provider trace.
package providers
