package pipeline

import "horse.fit/storychain/internal/config"

// OptionsFromSettings maps configured chain settings onto run options.
// Progress and concurrency are left for the caller.
func OptionsFromSettings(settings config.ChainSettings) ChainOptions {
	opts := DefaultChainOptions()
	opts.SimilarityThreshold = settings.SimilarityThreshold
	opts.ConfidenceThreshold = settings.ConfidenceThreshold
	opts.DecayWindowDays = settings.DecayWindowDays
	opts.MaxValidations = settings.MaxValidations
	opts.AdjudicationEnabled = settings.AdjudicationEnabled
	opts.FallbackTopN = settings.FallbackTopN
	opts.KeywordCount = settings.KeywordCount
	opts.MaxFeatures = settings.MaxFeatures
	opts.SkipCrossLanguage = settings.SkipCrossLanguage
	return opts
}
