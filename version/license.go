/*
 * MIT License
 *
 * Copyright (c) 2024 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

package version

// License names one of the license texts this package can report
// alongside a component's version metadata.
type License uint8

const (
	License_None License = iota
	License_MIT
	License_Apache_v2
	License_GNU_GPL_v3
	License_GNU_Affero_GPL_v3
	License_GNU_Lesser_GPL_v3
	License_Mozilla_PL_v2
	License_BSD_3_Clause
	License_BSD_2_Clause
	License_Unlicense
	License_Creative_Common_Zero_v1
	License_Creative_Common_Attribution_v4_int
	License_Creative_Common_Attribution_Share_Alike_v4_int
	License_SIL_Open_Font_1_1
)

// String returns the short display name of the license.
func (l License) String() string {
	return l.Name()
}

// Name returns the license's short display name, used by GetLicenseName.
func (l License) Name() string {
	switch l {
	case License_MIT:
		return "MIT License"
	case License_Apache_v2:
		return "Apache License, Version 2.0"
	case License_GNU_GPL_v3:
		return "GNU GENERAL PUBLIC LICENSE, Version 3"
	case License_GNU_Affero_GPL_v3:
		return "GNU AFFERO GENERAL PUBLIC LICENSE, Version 3"
	case License_GNU_Lesser_GPL_v3:
		return "GNU LESSER GENERAL PUBLIC LICENSE, Version 3"
	case License_Mozilla_PL_v2:
		return "Mozilla Public License, Version 2.0"
	case License_BSD_3_Clause:
		return "BSD 3-Clause License"
	case License_BSD_2_Clause:
		return "BSD 2-Clause License"
	case License_Unlicense:
		return "Free and unencumbered software"
	case License_Creative_Common_Zero_v1:
		return "Creative Commons CC0 1.0 Universal"
	case License_Creative_Common_Attribution_v4_int:
		return "Creative Commons Attribution 4.0 International"
	case License_Creative_Common_Attribution_Share_Alike_v4_int:
		return "Creative Commons Attribution-ShareAlike 4.0 International"
	case License_SIL_Open_Font_1_1:
		return "SIL OPEN FONT LICENSE, Version 1.1"
	}
	return "No License"
}

// Legal returns the full legal text associated with the license.
func (l License) Legal() string {
	switch l {
	case License_MIT:
		return mitLegal
	case License_Apache_v2:
		return apacheLegal
	case License_GNU_GPL_v3:
		return gplv3Legal
	case License_GNU_Affero_GPL_v3:
		return agplv3Legal
	case License_GNU_Lesser_GPL_v3:
		return lgplv3Legal
	case License_Mozilla_PL_v2:
		return mplv2Legal
	case License_BSD_3_Clause:
		return bsd3Legal
	case License_BSD_2_Clause:
		return bsd2Legal
	case License_Unlicense:
		return unlicenseLegal
	case License_Creative_Common_Zero_v1:
		return cc0Legal
	case License_Creative_Common_Attribution_v4_int:
		return ccByLegal
	case License_Creative_Common_Attribution_Share_Alike_v4_int:
		return ccBySaLegal
	case License_SIL_Open_Font_1_1:
		return silOflLegal
	}
	return ""
}

const mitLegal = `MIT License

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files, to deal in the Software
without restriction, including without limitation the rights to use, copy,
modify, merge, publish, distribute, sublicense, and/or sell copies of the
Software, subject to the following conditions: the above copyright notice
and this permission notice shall be included in all copies or substantial
portions of the Software. THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY
OF ANY KIND.`

const apacheLegal = `Apache License
Version 2.0, January 2004

Licensed under the Apache License, Version 2.0 (the "License"); you may not
use this file except in compliance with the License. You may obtain a copy
of the License at http://www.apache.org/licenses/LICENSE-2.0.`

const gplv3Legal = `GNU GENERAL PUBLIC LICENSE
Version 3, 29 June 2007

This program is free software: you can redistribute it and/or modify it
under the terms of the GNU General Public License as published by the Free
Software Foundation, either version 3 of the License, or any later version.`

const agplv3Legal = `GNU AFFERO GENERAL PUBLIC LICENSE
Version 3, 19 November 2007

This program is free software: you can redistribute it and/or modify it
under the terms of the GNU Affero General Public License as published by
the Free Software Foundation, either version 3 of the License, or any
later version. The GNU Affero General Public License adds the requirement
that, if you modify this program and let others interact with it remotely
through a network, your modified version must prominently offer them the
source code.`

const lgplv3Legal = `GNU LESSER GENERAL PUBLIC LICENSE
Version 3, 29 June 2007

This version of the GNU Lesser General Public License incorporates the
terms and conditions of version 3 of the GNU General Public License.`

const mplv2Legal = `Mozilla Public License Version 2.0

This Source Code Form is subject to the terms of the Mozilla Public
License, v. 2.0. If a copy of the MPL was not distributed with this file,
You can obtain one at http://mozilla.org/MPL/2.0/.`

const bsd3Legal = `BSD 3-Clause License

Redistribution and use in source and binary forms, with or without
modification, are permitted provided that the conditions of this license
are met, including retention of the above copyright notice and disclaimer.`

const bsd2Legal = `BSD 2-Clause License

Redistribution and use in source and binary forms, with or without
modification, are permitted provided that the above copyright notice and
this list of conditions are retained.`

const unlicenseLegal = `This is free and unencumbered software released into the public domain.

Anyone is free to copy, modify, publish, use, compile, sell, or distribute
this software, either in source code form or as a compiled binary, for any
purpose, commercial or non-commercial, and by any means.`

const cc0Legal = `Creative Commons Legal Code
CC0 1.0 Universal

The person who associated a work with this deed has dedicated the work to
the public domain by waiving all of his or her rights to the work worldwide
under copyright law.`

const ccByLegal = `Creative Commons Attribution 4.0 International

This license lets others distribute, remix, adapt, and build upon this
work, even commercially, as long as they credit the original creator for
the original creation.`

const ccBySaLegal = `Creative Commons Attribution-ShareAlike 4.0 International

This license lets others remix, adapt, and build upon this work even for
commercial purposes, as long as they credit the original creator and
license their new creations under the identical terms.`

const silOflLegal = `SIL OPEN FONT LICENSE
Version 1.1, 26 February 2007

This license is copyleft: any derivative works must be distributed under
the same license terms, and permits the licensed fonts to be used,
studied, modified and redistributed freely.`
