package store

import (
	"encoding/json"

	"github.com/rotisserie/eris"

	"github.com/sells-group/check-cli/internal/model"
)

func encodeResult(fields model.CheckFields, validation model.ValidationResult, consensus model.ConsensusReport) (f, v, c []byte, err error) {
	if f, err = json.Marshal(fields); err != nil {
		return nil, nil, nil, eris.Wrap(err, "marshal fields")
	}
	if v, err = json.Marshal(validation); err != nil {
		return nil, nil, nil, eris.Wrap(err, "marshal validation")
	}
	if c, err = json.Marshal(consensus); err != nil {
		return nil, nil, nil, eris.Wrap(err, "marshal consensus")
	}
	return f, v, c, nil
}

// decodeResult fills the JSON columns of c. NULL columns leave the field nil.
func decodeResult(c *model.Check, fields, validation, consensus []byte) error {
	if len(fields) > 0 {
		c.Fields = &model.CheckFields{}
		if err := json.Unmarshal(fields, c.Fields); err != nil {
			return eris.Wrap(err, "unmarshal fields")
		}
	}
	if len(validation) > 0 {
		c.Validation = &model.ValidationResult{}
		if err := json.Unmarshal(validation, c.Validation); err != nil {
			return eris.Wrap(err, "unmarshal validation")
		}
	}
	if len(consensus) > 0 {
		if err := json.Unmarshal(consensus, &c.Consensus); err != nil {
			return eris.Wrap(err, "unmarshal consensus")
		}
	}
	return nil
}

func decodeData(st *model.ProcessingStage, data []byte) error {
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	return json.Unmarshal(data, &st.Data)
}
