package record

// Normalize merges decoded payload fields into the fixed schema and attaches
// the metadata block. Known fields absent from decoded keep their defaults;
// unknown keys are added verbatim. Normalize is pure: the result shares no
// state with its inputs.
func Normalize(decoded map[string]string, meta Meta) Record {
	fields := make(map[string]string, len(schema)+len(decoded))
	for _, f := range schema {
		fields[f.Name] = f.Default
	}
	for k, v := range decoded {
		fields[k] = v
	}
	return Record{Fields: fields, Meta: meta}
}
