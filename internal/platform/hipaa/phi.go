package hipaa

// Entity type names recorded in audit entries.
const (
	EntityPatient              = "Patient"
	EntityMedicalRecord        = "MedicalRecord"
	EntityPrescription         = "Prescription"
	EntityLabResult            = "LabResult"
	EntityAudiometryTest       = "AudiometryTest"
	EntityTympanometryTest     = "TympanometryTest"
	EntitySpeechAudiometryTest = "SpeechAudiometryTest"
	EntityAcousticReflexTest   = "AcousticReflexTest"
	EntityOAETest              = "OAETest"
	EntityABRTest              = "ABRTest"
	EntityVestibularTest       = "VestibularTest"
	EntityNasalEndoscopy       = "NasalEndoscopy"
	EntityLaryngoscopyExam     = "LaryngoscopyExam"
	EntityQuestionnaireResp    = "QuestionnaireResponse"
	EntityDocument             = "Document"
	EntityInvoice              = "Invoice"

	EntityTenant   = "Tenant"
	EntityUser     = "User"
	EntityAccount  = "Account"
	EntitySettings = "Settings"
	EntityAuditLog = "AuditLog"
)

var phiEntityTypes = map[string]struct{}{
	EntityPatient:              {},
	EntityMedicalRecord:        {},
	EntityPrescription:         {},
	EntityLabResult:            {},
	EntityAudiometryTest:       {},
	EntityTympanometryTest:     {},
	EntitySpeechAudiometryTest: {},
	EntityAcousticReflexTest:   {},
	EntityOAETest:              {},
	EntityABRTest:              {},
	EntityVestibularTest:       {},
	EntityNasalEndoscopy:       {},
	EntityLaryngoscopyExam:     {},
	EntityQuestionnaireResp:    {},
	EntityDocument:             {},
	EntityInvoice:              {},
}

// IsPHI reports whether entityType holds protected health information.
// It is the only place that decides whether reads and writes of an entity
// are audited; call sites must not keep their own lists.
func IsPHI(entityType string) bool {
	_, ok := phiEntityTypes[entityType]
	return ok
}

// PHIEntityTypes returns the classified entity types in no particular order.
func PHIEntityTypes() []string {
	out := make([]string, 0, len(phiEntityTypes))
	for t := range phiEntityTypes {
		out = append(out, t)
	}
	return out
}
