package index

var (
	bMeta    = []byte("meta")     // id -> record JSON
	bAlias   = []byte("alias")    // alias -> id
	bIdxDate = []byte("idx_date") // dateKey -> 1, newest first
	bIdxTag  = []byte("idx_tag")  // tag -> sub-bucket of dateKey
	bPages   = []byte("pages")    // output path -> fingerprint JSON
	bInfo    = []byte("info")

	kBuiltAt = []byte("built_at")
)
