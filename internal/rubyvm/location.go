package rubyvm

import "github.com/rbspy/rbspy-sub000/internal/memory"

// location decodes a frame's name and path fields. Exactly one of four
// shapes applies, picked by which offsets the Layout populated — oldest
// Ruby first:
//
//   - 1.9.1:        iseq->name, iseq->filename                  (no absolute path)
//   - 1.9.2-1.9.3:  iseq->name, iseq->filename, iseq->filepath
//   - 2.0.0-2.4.x:  body->location.{label,path,absolute_path}
//   - >=2.5.0:      body->location.{label,pathobj}              (pathobj decoded by readPathObject)
func (e *Engine) location(h memory.ProcessHandle, iseq, body uintptr) (name, relPath, absPath string, hasAbsPath bool, err error) {
	l := e.Layout

	switch {
	case l.LocationPathObjOffset != 0:
		labelAddr, err := memory.ReadUintptr(h, body+uintptr(l.LocationLabelOffset))
		if err != nil {
			return "", "", "", false, err
		}
		name, err = readRubyString(h, labelAddr)
		if err != nil {
			return "", "", "", false, err
		}
		pathObjAddr, err := memory.ReadUintptr(h, body+uintptr(l.LocationPathObjOffset))
		if err != nil {
			return "", "", "", false, err
		}
		relPath, absPath, err = readPathObject(h, pathObjAddr, e.StringClassAddr)
		if err != nil {
			return "", "", "", false, err
		}
		return name, relPath, absPath, true, nil

	case l.LocationAbsPathOffset != 0:
		labelAddr, err := memory.ReadUintptr(h, body+uintptr(l.LocationLabelOffset))
		if err != nil {
			return "", "", "", false, err
		}
		name, err = readRubyString(h, labelAddr)
		if err != nil {
			return "", "", "", false, err
		}
		pathAddr, err := memory.ReadUintptr(h, body+uintptr(l.LocationPathOffset))
		if err != nil {
			return "", "", "", false, err
		}
		relPath, err = readRubyString(h, pathAddr)
		if err != nil {
			return "", "", "", false, err
		}
		absAddr, err := memory.ReadUintptr(h, body+uintptr(l.LocationAbsPathOffset))
		if err != nil {
			return "", "", "", false, err
		}
		absPath, err = readRubyString(h, absAddr)
		if err != nil {
			return "", "", "", false, err
		}
		return name, relPath, absPath, true, nil

	case l.FilepathOffset != 0:
		nameAddr, err := memory.ReadUintptr(h, iseq+uintptr(l.NameOffset))
		if err != nil {
			return "", "", "", false, err
		}
		name, err = readRubyString(h, nameAddr)
		if err != nil {
			return "", "", "", false, err
		}
		fileAddr, err := memory.ReadUintptr(h, iseq+uintptr(l.FilenameOffset))
		if err != nil {
			return "", "", "", false, err
		}
		relPath, err = readRubyString(h, fileAddr)
		if err != nil {
			return "", "", "", false, err
		}
		pathAddr, err := memory.ReadUintptr(h, iseq+uintptr(l.FilepathOffset))
		if err != nil {
			return "", "", "", false, err
		}
		absPath, err = readRubyString(h, pathAddr)
		if err != nil {
			return "", "", "", false, err
		}
		return name, relPath, absPath, true, nil

	default: // 1.9.1
		nameAddr, err := memory.ReadUintptr(h, iseq+uintptr(l.NameOffset))
		if err != nil {
			return "", "", "", false, err
		}
		name, err = readRubyString(h, nameAddr)
		if err != nil {
			return "", "", "", false, err
		}
		fileAddr, err := memory.ReadUintptr(h, iseq+uintptr(l.FilenameOffset))
		if err != nil {
			return "", "", "", false, err
		}
		relPath, err = readRubyString(h, fileAddr)
		if err != nil {
			return "", "", "", false, err
		}
		return name, relPath, "", false, nil
	}
}
