package autonomy

// Disposition is the gate's verdict for one candidate action.
type Disposition string

const (
	// DispositionBlock rejects the action outright.
	DispositionBlock Disposition = "block"

	// DispositionSuggest surfaces the action as a suggestion only.
	DispositionSuggest Disposition = "suggest"

	// DispositionDraft prepares the action and parks it for approval.
	DispositionDraft Disposition = "draft"

	// DispositionAutoNotice executes the action and notifies the owner.
	DispositionAutoNotice Disposition = "auto_notice"

	// DispositionAutoSilent executes the action without notification.
	DispositionAutoSilent Disposition = "auto_silent"
)

// dispositionByLevel maps an effective level to its disposition.
var dispositionByLevel = map[Level]Disposition{
	LevelDisabled:   DispositionBlock,
	LevelSuggest:    DispositionSuggest,
	LevelDraft:      DispositionDraft,
	LevelAutoNotice: DispositionAutoNotice,
	LevelAutoSilent: DispositionAutoSilent,
}

// AllowsExecution reports whether the disposition executes the tool now.
func (d Disposition) AllowsExecution() bool {
	return d == DispositionAutoNotice || d == DispositionAutoSilent
}

// Notifies reports whether execution carries an owner notice.
func (d Disposition) Notifies() bool {
	return d == DispositionAutoNotice
}

// Decide maps a user's configured level for a category plus the composite
// confidence of the candidate action to a disposition.
//
// Confidence only ever demotes: a composite below the category minimum
// downgrades the effective level by one step regardless of configuration.
// L0 blocks unconditionally.
func Decide(cfg *Config, cat Category, composite float64) Disposition {
	effective := cfg.Level(cat)
	if effective == LevelDisabled {
		return DispositionBlock
	}
	if composite < cfg.MinFor(cat) {
		effective--
	}
	return dispositionByLevel[effective]
}
