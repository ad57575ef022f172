package epub

// LoadMetadata reads container.xml and the OPF and returns the
// descriptive metadata of the book. No content document is touched.
func LoadMetadata(a *Archive) (*Metadata, error) {
	raw, err := a.ReadFile(containerPath)
	if err != nil {
		return nil, formatErr(containerPath, "container descriptor not found", err)
	}
	rootContentPath, err := parseContainer(raw)
	if err != nil {
		return nil, err
	}

	opf, err := readOPF(a, rootContentPath)
	if err != nil {
		return nil, err
	}

	md := &Metadata{
		Title:           opf.Metadata.Title,
		Creators:        opf.Metadata.Creators,
		Language:        opf.Metadata.Language,
		Identifier:      opf.Metadata.Identifier,
		RootPath:        dirPrefix(rootContentPath),
		RootContentPath: rootContentPath,
	}
	if len(md.Creators) > 0 {
		md.Creator = md.Creators[0]
	}
	if cover := opf.DetectCover(); cover != nil {
		md.CoverPath = md.RootPath + cover.Href
	}
	return md, nil
}

func readOPF(a *Archive, rootContentPath string) (*OPF, error) {
	data, err := a.ReadFile(rootContentPath)
	if err != nil {
		return nil, formatErr(rootContentPath, "root content descriptor not found", err)
	}
	opf, err := ParseOPF(data)
	if err != nil {
		return nil, formatErr(rootContentPath, "unreadable package document", err)
	}
	return opf, nil
}
