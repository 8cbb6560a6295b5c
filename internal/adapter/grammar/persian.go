package grammar

// Persian is a cascade for the Bijankhan-style Persian tag set. Tags ending in
// "e" carry the ezafe marker, which links a word to the next one inside a
// phrase.
const Persian = `
NP:
    <P>{<N>}<V>

VP:
    <.*[^e]>{<N>?<V>}
    {<V>}

ADVP:
    {<ADVe?><AJ>?}

ADJP:
    <.*[^e]>{<AJe?>}

NP:
    {<DETe?|Ne?|NUMe?|AJe|PRO|CL|RESe?><DETe?|Ne?|NUMe?|AJe?|PRO|CL|RESe?>*}
    <N>}{<.*e?>

ADJP:
    {<AJe?>}

POSTP:
    {<POSTP>}

PP:
    {<Pe?>+}
`
